package depositd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ContractRequest describes the deposit a contract document should cover.
type ContractRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Term      string          `json:"term"`
}

// ContractDocument is what the external generator returns. Its fields are
// embedded verbatim as deposit metadata.
type ContractDocument struct {
	ID           string   `json:"id"`
	DocumentURLs []string `json:"documentUrls"`
}

// ContractClient generates contract documents ahead of deposit creation.
type ContractClient interface {
	Generate(ctx context.Context, req ContractRequest) (*ContractDocument, error)
}

type httpContractClient struct {
	baseURL string
	client  *http.Client
}

// NewContractClient builds the HTTP collaborator client, or returns nil when
// no generator is configured.
func NewContractClient(cfg ContractConfig) ContractClient {
	if cfg.BaseURL == "" {
		return nil
	}
	return &httpContractClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout.Duration},
	}
}

func (c *httpContractClient) Generate(ctx context.Context, req ContractRequest) (*ContractDocument, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("contract request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contracts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("contract request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("contract generator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("contract generator: unexpected status %d", resp.StatusCode)
	}
	var doc ContractDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("contract generator: decode response: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("contract generator: empty contract id")
	}
	return &doc, nil
}
