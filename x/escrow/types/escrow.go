// Package types holds the escrow contract's data model: a
// per-escrow_id lock record and the invariant that keeps its expiry
// safely ahead of the IBC round trip it backstops.
package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Status is an escrow's position in its (non-reversible) lifecycle.
type Status uint8

const (
	Locked Status = iota
	Released
	Refunded
	// Refunding is the in-flight state between dispatching a
	// cross-chain refund's own IBC transfer and observing its
	// acknowledgement. A same-chain refund never passes through it:
	// the bank send is synchronous, so it goes Locked -> Refunded
	// directly.
	Refunding
)

func (s Status) String() string {
	switch s {
	case Locked:
		return "Locked"
	case Released:
		return "Released"
	case Refunded:
		return "Refunded"
	case Refunding:
		return "Refunding"
	default:
		return "Unknown"
	}
}

// Escrow is the persisted lock record for a single escrow_id.
type Escrow struct {
	EscrowID string
	IntentID string

	Owner      string // bech32, the locker and default refund beneficiary
	OwnerChain string // chain id owner lives on; empty means this chain

	Denom  string
	Amount sdkmath.Int

	SourceChannel string // channel back to OwnerChain, used by cross-chain refund

	Status     Status
	ReleasedTo string

	// RefundPacketSequence is the cross-chain refund transfer's IBC
	// sequence, set while Status == Refunding so the caller can
	// correlate an ack back to this escrow. Zero for a same-chain
	// refund, which never passes through Refunding.
	RefundPacketSequence uint64

	ExpiresAt time.Time
	CreatedAt time.Time
}

// TimeoutInvariantSatisfied checks the lock-time safety invariant:
// expiresAt must be no earlier than the IBC settlement round trip
// (ibcTimeout + safetyBuffer) measured from now.
func TimeoutInvariantSatisfied(expiresAt, now time.Time, ibcTimeout, safetyBuffer time.Duration) bool {
	return !expiresAt.Before(now.Add(ibcTimeout + safetyBuffer))
}
