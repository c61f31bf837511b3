// Package types holds the on-chain settlement state machine's data
// model: states, transitions, and the persisted record a keeper
// advances through them.
package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// State is a position in the settlement state machine's total order.
type State uint8

const (
	Pending State = iota
	UserLocked
	SolverLocked
	Executing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case UserLocked:
		return "UserLocked"
	case SolverLocked:
		return "SolverLocked"
	case Executing:
		return "Executing"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s admits no further transitions.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Record is the persisted state of a single settlement, identified by
// SettlementID and advanced one entry point at a time.
type Record struct {
	SettlementID string
	IntentID     string

	User           string // bech32, the input owner and ack beneficiary
	SolverOperator string // bech32, authorized to drive solver-side transitions

	InputDenom   string
	InputAmount  sdkmath.Int
	OutputDenom  string
	OutputAmount sdkmath.Int

	EscrowID      string
	SolverVaultID string

	SourceChannel string
	DestChannel   string
	IBCTimeoutSecs uint64
	SafetyBufferSecs uint64

	Status         State
	FailReason     string
	PacketSequence uint64
	Deadline       time.Time // set once Executing begins; used by handle_timeout

	// RelayerGaveUp is set once this settlement's packet exhausted
	// pkg/relayer's retry budget without an ack. HandleTimeout reads it
	// to tell a relay-infrastructure timeout (no slash) from an
	// unexplained one (solver fault, slash).
	RelayerGaveUp bool

	SolverBond   sdkmath.Int
	BaseSlashBps uint32

	CreatedAt time.Time
}

// Params tunes slashing for solver-fault failures.
type Params struct {
	MinSlash sdkmath.Int
}

// ComputeSlash returns the solver-fault slash amount:
// max(MIN_SLASH, min(bond, input_amount * base_slash_bps / 10000)).
func ComputeSlash(minSlash, bond, inputAmount sdkmath.Int, baseSlashBps uint32) sdkmath.Int {
	proportional := inputAmount.MulRaw(int64(baseSlashBps)).QuoRaw(10000)
	capped := proportional
	if bond.LT(capped) {
		capped = bond
	}
	if minSlash.GT(capped) {
		return minSlash
	}
	return capped
}
