package depositd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"depositcore/native/agents"
	"depositcore/native/rates"
	"depositcore/storage"
)

const (
	keyRateTiers      = "config/rateTiers"
	keyAgentRateTiers = "config/agentRateTiers"
	prefixAgents      = "agents/"
)

// ErrRatesUnavailable is returned when the rate configuration cannot be
// read. Quotes never fall back to stale or default schedules.
var ErrRatesUnavailable = errors.New("depositd: rate configuration unavailable")

// rateTables is the point-in-time rate configuration for a quote.
type rateTables struct {
	Principal rates.Table
	Agent     rates.Table
}

// loadRateTables reads both tier schedules from the document store. Missing
// documents yield empty tables, which quote to a zero rate; read failures
// surface as ErrRatesUnavailable so callers can retry.
func loadRateTables(ctx context.Context, store storage.Store) (rateTables, error) {
	var tables rateTables
	err := store.View(ctx, func(txn storage.Txn) error {
		var raw map[string]float64
		if _, err := txn.Get(keyRateTiers, &raw); err != nil {
			return err
		}
		tables.Principal = rates.Normalize(raw)
		raw = nil
		if _, err := txn.Get(keyAgentRateTiers, &raw); err != nil {
			return err
		}
		tables.Agent = rates.Normalize(raw)
		return nil
	})
	if err != nil {
		return rateTables{}, fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
	}
	return tables, nil
}

// storeDirectory adapts the document store to the commission resolver's
// AgentDirectory: the full active-agent snapshot, read point-in-time.
type storeDirectory struct {
	store storage.Store
}

func (d storeDirectory) ActiveAgents(ctx context.Context) ([]agents.Agent, error) {
	var snapshot []agents.Agent
	err := d.store.View(ctx, func(txn storage.Txn) error {
		return txn.List(prefixAgents, func(_ string, raw []byte) error {
			var agent agents.Agent
			if err := json.Unmarshal(raw, &agent); err != nil {
				return err
			}
			snapshot = append(snapshot, agent)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("depositd: agent snapshot: %w", err)
	}
	return snapshot, nil
}
