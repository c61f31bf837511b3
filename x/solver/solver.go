// Package solver is a capability trait: the matching/auction engine
// depends only on this interface, never on a concrete solver
// implementation. Peer-matching, DEX-routing and exchange-backstop
// solvers are collaborators that implement it; none are built here.
package solver

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
)

// Fill is the economic terms of a solver's proposed execution.
type Fill struct {
	InputAmount  sdkmath.Int
	OutputAmount sdkmath.Int
	Price        sdkmath.LegacyDec
}

// Quote is a solver's priced offer to fill an intent.
type Quote struct {
	SolverID      string
	IntentID      string
	Fill          Fill
	ExecutionPlan string
	ValidUntil    time.Time
	Bond          sdkmath.Int
	SubmittedAt   time.Time
}

// Expired reports whether the quote is no longer usable at now.
func (q Quote) Expired(now time.Time) bool {
	return !q.ValidUntil.After(now)
}

// Capability is the tagged-variant interface every solver
// implementation (peer-matching, DEX-routing, exchange-backstop)
// satisfies. The auction engine only ever talks to this interface.
type Capability interface {
	// SupportedPairs lists the trading pairs this solver can quote.
	SupportedPairs() []string
	// Solve asks the solver to produce a quote for intent, or an error
	// if it declines.
	Solve(ctx context.Context, intent intenttypes.Intent) (Quote, error)
	// Capacity reports how much of pair's output denom the solver can
	// currently commit to, for exposure/circuit-breaker checks.
	Capacity(pair string) sdkmath.Int
}
