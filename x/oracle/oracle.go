// Package oracle is a narrow price capability: a typed dependency
// injected at construction time, consulted only for circuit-breaker
// sanity bounds — never to set the clearing price of crossed internal
// intents.
package oracle

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Price is a single source's quote for a trading pair.
type Price struct {
	Value      sdkmath.LegacyDec
	Confidence sdkmath.LegacyDec // 0..1, higher is more confident
	Timestamp  time.Time
	Source     string
}

// Source is one independent price feed. Implementations (on-chain
// oracle modules, CEX tickers, etc.) are collaborators out of scope
// for this repo; this interface is the seam between them.
type Source interface {
	FetchPrice(ctx context.Context, pair string) (Price, error)
}

// RequirementKind selects how a caller wants missing/failed price data
// handled.
type RequirementKind uint8

const (
	Required RequirementKind = iota
	Optional
	Cached
)

// Requirement is a caller's policy for obtaining a price.
type Requirement struct {
	Kind     RequirementKind
	Fallback *Price        // used when Kind == Optional
	TTL      time.Duration // used when Kind == Cached
}
