// Package depositd exposes the time-deposit quote and creation core over
// HTTP. Quote computation is pure; every creation runs as one atomic
// transaction against the document store.
package depositd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"depositcore/native/agents"
	"depositcore/native/commission"
	"depositcore/native/deposit"
	"depositcore/observability/logging"
	"depositcore/storage"
)

// Server wires the engine, the document store and the external collaborators
// behind the HTTP API.
type Server struct {
	cfg       *Config
	store     storage.Store
	engine    *deposit.Engine
	contracts ContractClient
	logger    *slog.Logger
	metrics   *Metrics
	taxRate   decimal.Decimal
	now       func() time.Time

	router http.Handler
}

// NewServer assembles the service. contracts may be nil when no generator is
// configured.
func NewServer(cfg *Config, store storage.Store, engine *deposit.Engine, contracts ContractClient, logger *slog.Logger, metrics *Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		contracts: contracts,
		logger:    logger,
		metrics:   metrics,
		taxRate:   decimal.NewFromFloat(cfg.TaxRate),
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/deposits/quote", s.handleQuote)
		r.Get("/deposits/{id}", s.handleGetDeposit)
		r.Get("/agents/{id}/hierarchy", s.handleHierarchy)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/deposits", s.handleCreate)
			r.Put("/admin/rates", s.handlePutRates)
			r.Put("/admin/agents", s.handlePutAgents)
			r.Post("/admin/accounts", s.handlePostAccount)
		})
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken != "" {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != s.cfg.AdminToken {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type quoteRequest struct {
	Amount decimal.Decimal  `json:"amount"`
	Term   string           `json:"term"`
	Rate   *decimal.Decimal `json:"rate,omitempty"`
	// CommissionPercentage requests a referral net-commission preview.
	CommissionPercentage *decimal.Decimal `json:"commissionPercentage,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	started := s.now()
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	quote, err := s.buildQuote(r, req)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.metrics.QuoteDuration.Observe(s.now().Sub(started).Seconds())
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) buildQuote(r *http.Request, req quoteRequest) (*deposit.Quote, error) {
	term := deposit.Term(req.Term)
	if !term.Known() {
		return nil, fmt.Errorf("%w: %q", deposit.ErrInvalidTerm, req.Term)
	}
	tables, err := loadRateTables(r.Context(), s.store)
	if err != nil {
		return nil, err
	}
	return deposit.BuildQuote(deposit.QuoteInput{
		Amount:          req.Amount,
		Term:            term,
		Tiers:           tables.Principal,
		OverrideRate:    req.Rate,
		AgentTiers:      tables.Agent,
		ReferralPercent: req.CommissionPercentage,
		TaxRate:         s.taxRate,
	})
}

type createReferral struct {
	UserID    string           `json:"userId"`
	Name      string           `json:"name,omitempty"`
	Percent   *decimal.Decimal `json:"commissionPercentage,omitempty"`
	Hierarchy bool             `json:"hierarchy,omitempty"`
	AgentCode string           `json:"agentCode,omitempty"`
}

type createRequest struct {
	AccountID   string           `json:"accountId"`
	Amount      decimal.Decimal  `json:"amount"`
	Term        string           `json:"term"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
	InitialDate string           `json:"initialDate,omitempty"`
	// IdempotencyKey may also arrive via the Idempotency-Key header, which
	// wins over the body field.
	IdempotencyKey   string          `json:"idempotencyKey,omitempty"`
	Referral         *createReferral `json:"referral,omitempty"`
	GenerateContract bool            `json:"generateContract,omitempty"`
}

type createResponse struct {
	Deposit    *deposit.TimeDeposit `json:"deposit"`
	Idempotent bool                 `json:"idempotent"`
	Warnings   []string             `json:"warnings,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}

	var referralPct *decimal.Decimal
	if req.Referral != nil {
		referralPct = req.Referral.Percent
	}
	quote, err := s.buildQuote(r, quoteRequest{
		Amount:               req.Amount,
		Term:                 req.Term,
		Rate:                 req.Rate,
		CommissionPercentage: referralPct,
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	initialDate := s.now().UTC().Truncate(24 * time.Hour)
	if req.InitialDate != "" {
		initialDate, err = deposit.ParseInitialDate(req.InitialDate)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
	}

	var referralCtx *commission.ReferralContext
	if req.Referral != nil {
		referralCtx, err = commission.ResolveDistribution(
			r.Context(),
			&commission.Referral{
				UserID:    req.Referral.UserID,
				Name:      req.Referral.Name,
				Percent:   req.Referral.Percent,
				Hierarchy: req.Referral.Hierarchy,
				AgentCode: req.Referral.AgentCode,
			},
			req.Amount,
			quote.EstimatedAgentRate,
			s.taxRate,
			storeDirectory{store: s.store},
		)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
	}

	params := deposit.CreateParams{
		AccountID:      req.AccountID,
		Quote:          quote,
		Referral:       referralCtx,
		IdempotencyKey: idempotencyKey(r, req),
		InitialDate:    initialDate,
		AdminID:        r.Header.Get("X-Admin-Id"),
	}

	var warnings []string
	if req.GenerateContract && s.contracts != nil {
		doc, err := s.contracts.Generate(r.Context(), ContractRequest{
			AccountID: req.AccountID,
			Amount:    req.Amount,
			Term:      req.Term,
		})
		switch {
		case err == nil:
			params.ContractID = doc.ID
			params.ContractURLs = doc.DocumentURLs
		case s.cfg.Contract.Strict:
			s.logger.Error("contract generation failed", "error", err)
			writeError(w, http.StatusBadGateway, "CONTRACT_GENERATION_FAILED", err.Error())
			return
		default:
			s.logger.Warn("contract generation failed, proceeding without contract", "error", err)
			warnings = append(warnings, fmt.Sprintf("contract generation failed: %v", err))
		}
	}

	result, err := s.engine.CreateDeposit(r.Context(), params)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.metrics.TxnConflicts.Inc()
		}
		s.writeMappedError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
		s.metrics.IdempotentReplays.Inc()
	} else {
		s.metrics.DepositsCreated.Inc()
		s.logger.Info("time deposit opened",
			"displayId", result.Deposit.DisplayID,
			"account", logging.MaskID(result.Deposit.AccountID),
			"amount", result.Deposit.Amount.String(),
			"term", string(result.Deposit.Term),
		)
	}
	writeJSON(w, status, createResponse{
		Deposit:    result.Deposit,
		Idempotent: result.Idempotent,
		Warnings:   append(warnings, result.Warnings...),
	})
}

func idempotencyKey(r *http.Request, req createRequest) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(req.IdempotencyKey)
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	record, found, err := s.engine.Deposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no deposit under this id")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type hierarchyShare struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Percentage string `json:"percentage"`
}

type hierarchyResponse struct {
	Agent    agents.Agent     `json:"agent"`
	Shares   []hierarchyShare `json:"shares"`
	Recruits []agents.Agent   `json:"recruits,omitempty"`
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, err := storeDirectory{store: s.store}.ActiveAgents(r.Context())
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var subject *agents.Agent
	for i := range snapshot {
		if snapshot[i].UserID == id {
			subject = &snapshot[i]
			break
		}
	}
	if subject == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no agent under this id")
		return
	}
	resp := hierarchyResponse{Agent: *subject, Recruits: agents.FindRecruits(*subject, snapshot)}
	for _, share := range agents.ResolveShares(*subject, snapshot) {
		resp.Shares = append(resp.Shares, hierarchyShare{
			UserID:     share.UserID,
			Name:       share.Name,
			Type:       string(share.Type),
			Percentage: share.Percent.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type ratesRequest struct {
	Tiers      map[string]float64 `json:"tiers"`
	AgentTiers map[string]float64 `json:"agentTiers,omitempty"`
}

func (s *Server) handlePutRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	err := s.store.RunInTransaction(r.Context(), func(txn storage.Txn) error {
		if err := txn.Set(keyRateTiers, req.Tiers); err != nil {
			return err
		}
		return txn.Set(keyAgentRateTiers, req.AgentTiers)
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutAgents(w http.ResponseWriter, r *http.Request) {
	var snapshot []agents.Agent
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	for _, agent := range snapshot {
		if agent.UserID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "agent userId required")
			return
		}
	}
	err := s.store.RunInTransaction(r.Context(), func(txn storage.Txn) error {
		for _, agent := range snapshot {
			if err := txn.Set(prefixAgents+agent.UserID, agent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostAccount(w http.ResponseWriter, r *http.Request) {
	var account deposit.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if account.ID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "account id required")
		return
	}
	if err := s.engine.SaveAccount(r.Context(), account); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, err.Error())
}

// mapError translates domain sentinels into stable error codes. The codes
// are a compatibility surface for clients; changing one is a breaking
// change.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, deposit.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, deposit.ErrInvalidTerm):
		return http.StatusBadRequest, "INVALID_TERM"
	case errors.Is(err, deposit.ErrInvalidDate):
		return http.StatusBadRequest, "INVALID_DATE"
	case errors.Is(err, commission.ErrInvalidPercentage):
		return http.StatusBadRequest, "INVALID_COMMISSION_PERCENTAGE"
	case errors.Is(err, commission.ErrAgentCodeMissing):
		return http.StatusBadRequest, "REFERRER_AGENT_CODE_MISSING"
	case errors.Is(err, commission.ErrHierarchyNotFound):
		return http.StatusNotFound, "HIERARCHY_NOT_FOUND"
	case errors.Is(err, deposit.ErrAccountNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, commission.ErrInvalidCommission):
		return http.StatusInternalServerError, "INVALID_COMMISSION"
	case errors.Is(err, ErrRatesUnavailable):
		return http.StatusServiceUnavailable, "RATES_UNAVAILABLE"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}
