// Package types holds the channel/route registry's data model and the
// solver registry (bond/reputation/exposure) that backs the auction's
// reputation tie-break and the settlement state machine's slashing
// call.
package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Channel is one directed IBC edge in the channel graph: from
// ChainID, over ChannelID, to CounterpartyChainID.
type Channel struct {
	ChainID             string
	ChannelID           string
	CounterpartyChainID string
	Port                string
}

// Hop is one leg of a resolved Route.
type Hop struct {
	ChainID   string
	ChannelID string
	Port      string
}

// Route is an ordered sequence of hops from a source chain to a
// destination chain.
type Route struct {
	Hops []Hop
}

// HopCount is the number of IBC transfers a route requires.
func (r Route) HopCount() int {
	return len(r.Hops)
}

// Solver is the on-chain registration record for a solver operator:
// its bond, current open exposure, accumulated reputation score and
// lifetime slashed amount.
type Solver struct {
	SolverID   string
	Operator   string
	Bond       sdkmath.Int
	Exposure   sdkmath.Int
	Reputation sdkmath.LegacyDec
	Slashed    sdkmath.Int
	BondedAt   time.Time
}

// Params governs registry-wide policy.
type Params struct {
	// BaseTimeout is the single-hop, same-direction IBC timeout unit
	// the timeout-scaling formula multiplies.
	BaseTimeout time.Duration
	// MinBondRatio is the minimum bond/exposure ratio a solver must
	// maintain; ReserveExposure trips below it.
	MinBondRatio sdkmath.LegacyDec
}

// Timeout implements the timeout-scaling formula:
// (hop_count + 2) × base for multi-hop PFM, 2× for single-hop, 1× for
// same-chain, 3× when a smart-contract execution hook is embedded.
func Timeout(route Route, base time.Duration, hasContractHook bool) time.Duration {
	hops := route.HopCount()
	var scale int64
	switch {
	case hasContractHook:
		scale = 3
	case hops == 0:
		scale = 1
	case hops == 1:
		scale = 2
	default:
		scale = int64(hops) + 2
	}
	return time.Duration(scale) * base
}
