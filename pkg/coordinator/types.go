// Package coordinator implements the off-chain two-phase settlement
// orchestrator: lock user input, lock solver output, dispatch the IBC
// transfer, register with the relayer, and await ack/timeout
// resolution. Each settlement is modeled as an actor identified by
// settlement_id, serialized by a per-id lock, and is safe under
// crash-restart by persisting state before any externally observable
// action.
package coordinator

import (
	"time"

	sdkmath "cosmossdk.io/math"

	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
)

// Atomicity selects how Phase 1a/1b are sequenced. A sequential
// lock-then-lock leaves a griefing window between the two locks; the
// Atomic variant closes it at the cost of holding both locks before
// either phase becomes externally observable.
type Atomicity uint8

const (
	// Sequential locks the escrow, then the solver vault, compensating
	// with an immediate refund if the second lock fails. This leaves a
	// window, between the two locks, where the escrow is locked but the
	// solver has committed nothing yet.
	Sequential Atomicity = iota
	// Atomic locks both sides before persisting either UserLocked or
	// SolverLocked: the settlement record moves from Pending through
	// UserLocked to SolverLocked only after both resource locks have
	// succeeded, so no persisted state ever shows the user locked
	// without the solver also committed.
	Atomic
)

// Solution is a solver's accepted offer for an intent, carrying what
// Phase 1b needs to reserve output funds in the solver's vault.
type Solution struct {
	SolverID       string
	SolverOperator string // bech32, authorized to drive solver-side settlement transitions
	VaultContract  string // bech32 address of the CosmWasm solver vault contract
	OutputDenom    string
	OutputAmount   sdkmath.Int
	Bond           sdkmath.Int
	ExecutionPlan  string
}

// Config tunes a single Settle call's timing and atomicity.
type Config struct {
	Atomicity Atomicity
	// SourceChannel is the channel the output transfer dispatches over
	// in Phase 2a (settlement.ExecuteSettlement).
	SourceChannel string
	// InputRefundChannel is the channel back to the intent's input
	// chain, used only if escrow.Refund ever needs to route a
	// cross-chain refund to the user. Empty when the input chain is
	// this chain.
	InputRefundChannel string
	IBCTimeoutSecs     uint64
	SafetyBufferSecs   uint64
	// EscrowSafetyMargin pads the escrow's expires_at beyond
	// ibc_timeout+safety_buffer so the escrow's own timeout invariant
	// clears with room to spare rather than exactly at the boundary.
	EscrowSafetyMargin time.Duration
	BaseSlashBps       uint32
}

// intentOwnerChain reports the chain the intent's input funds (and
// therefore its refund destination) originate from, for escrow.Lock's
// cross-chain refund routing.
func intentOwnerChain(intent intenttypes.Intent) string {
	return intent.Input.Chain
}
