// Package types holds the signed-intent data model: the immutable
// trade request a user submits, and the canonical hash it is signed
// over.
package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Side is which side of a trading pair an intent or book entry sits on.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// FillStrategyKind selects how an intent may be partially executed.
type FillStrategyKind uint8

const (
	StrategyEager FillStrategyKind = iota
	StrategyAllOrNothing
	StrategyMinimumThenEager
	StrategySolverDiscretion
)

// FillStrategy is a tagged variant: only MinimumThenEager carries a
// payload (the minimum fraction that must clear before fills accrue).
type FillStrategy struct {
	Kind       FillStrategyKind
	MinimumPct sdkmath.LegacyDec // valid only when Kind == StrategyMinimumThenEager
}

// FillConfig controls partial-execution policy for an intent.
type FillConfig struct {
	AllowPartial        bool
	MinFillAmount       sdkmath.Int
	MinFillPct          sdkmath.LegacyDec
	AggregationWindowMs uint64
	Strategy            FillStrategy
}

// CoinAmount is a denom-qualified amount on a given chain.
type CoinAmount struct {
	Chain  string
	Denom  string
	Amount sdkmath.Int
}

// OutputSpec is the intent's desired trade output.
type OutputSpec struct {
	Chain      string
	Denom      string
	MinAmount  sdkmath.Int
	LimitPrice sdkmath.LegacyDec
	Recipient  string
}

// Constraints are optional execution bounds on an intent.
type Constraints struct {
	Deadline            time.Time
	MaxHops             *uint32
	ExcludedVenues      []string
	MaxSolverFeeBps     *uint32
	AllowCrossEcosystem bool
	MaxBridgeTimeSecs   *uint64
}

// Intent is the signed, immutable trade request a user submits. It is
// never mutated after Verify succeeds; book/auction components only
// ever read it.
type Intent struct {
	ID        string // derived hash, hex-encoded
	Version   uint16
	Nonce     uint64
	User      string // bech32 address
	PublicKey []byte
	Signature []byte

	Input  CoinAmount
	Output OutputSpec

	FillConfig  FillConfig
	Constraints Constraints

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the intent is past its deadline at now.
func (i Intent) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
