// Package types holds the order-book data model.
package types

import (
	"time"

	sdkmath "cosmossdk.io/math"

	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
)

// BookEntry is a resting order on one side of a trading pair's book.
type BookEntry struct {
	IntentID        string
	User            string
	Side            intenttypes.Side
	OriginalAmount  sdkmath.Int
	RemainingAmount sdkmath.Int
	LimitPrice      sdkmath.LegacyDec
	FillConfig      intenttypes.FillConfig
	ExpiresAt       time.Time
	Timestamp       time.Time
	Sequence        uint64
}

// Fill is one match produced while walking the book against an
// incoming intent.
type Fill struct {
	MakerIntentID string
	MakerUser     string
	Amount        sdkmath.Int
	Price         sdkmath.LegacyDec
}

// MatchResult is the outcome of matching an incoming intent against
// the resting book.
type MatchResult struct {
	Fills     []Fill
	Remaining sdkmath.Int // unfilled amount of the incoming intent
	Inserted  bool        // whether the remainder was left resting on the book
}
