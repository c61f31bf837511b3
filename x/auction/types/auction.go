// Package types holds the batch-auction data model.
package types

import (
	sdkmath "cosmossdk.io/math"
)

// FillSource distinguishes an AuctionFill that crossed two internal
// intents from one routed to a solver's quote.
type FillSource uint8

const (
	InternalMatch FillSource = iota
	SolverQuote
)

// AuctionFill is one matched trade produced by a batch auction. For an
// InternalMatch both intent ids are set; for a SolverQuote fill, only
// the residual intent's own side (BuyIntentID or SellIntentID) is set
// and SolverID names the counterparty.
type AuctionFill struct {
	Source       FillSource
	BuyIntentID  string
	SellIntentID string
	SolverID     string
	Amount       sdkmath.Int
	Price        sdkmath.LegacyDec
}

// AuctionResult is the outcome of a single run_batch_auction call.
type AuctionResult struct {
	Fills         []AuctionFill
	ClearingPrice sdkmath.LegacyDec
}
