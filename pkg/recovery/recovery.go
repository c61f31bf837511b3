// Package recovery implements the crash-restart sweep a coordinator
// process runs at startup: list every non-terminal settlement and
// resume each one at the phase its persisted status implies.
// Resubmitting an already-completed phase is a no-op because the
// settlement state machine's own transition guards reject it.
package recovery

import (
	"context"
	"time"

	"cosmossdk.io/log"

	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

// SettlementLister exposes the settlement keeper's non-terminal
// records to the sweep.
type SettlementLister interface {
	ListNonTerminal(ctx context.Context) ([]settlementtypes.Record, error)
}

// Resumer is the coordinator's phase-resumption entry point.
type Resumer interface {
	Resume(ctx context.Context, settlementID string, now time.Time) error
}

// Sweep drives one crash-restart recovery pass.
type Sweep struct {
	logger      log.Logger
	settlements SettlementLister
	coordinator Resumer
}

// New returns a Sweep.
func New(logger log.Logger, settlements SettlementLister, coordinator Resumer) Sweep {
	return Sweep{logger: logger, settlements: settlements, coordinator: coordinator}
}

// Result reports one settlement's resumption outcome.
type Result struct {
	SettlementID string
	Status       settlementtypes.State
	Err          error
}

// Run lists every non-terminal settlement and resumes each. One
// settlement's failure never aborts the rest of the sweep; all
// outcomes are returned so the caller can decide whether any warrant
// operator attention.
func (s Sweep) Run(ctx context.Context, now time.Time) ([]Result, error) {
	records, err := s.settlements.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		err := s.coordinator.Resume(ctx, rec.SettlementID, now)
		if err != nil {
			s.logger.Error("recovery resume failed", "settlement_id", rec.SettlementID, "status", rec.Status, "err", err)
		}
		results = append(results, Result{SettlementID: rec.SettlementID, Status: rec.Status, Err: err})
	}
	return results, nil
}
