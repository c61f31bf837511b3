package coordinator

import (
	"context"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	escrowkeeper "github.com/tokenize-x/intent-swap-core/x/escrow/keeper"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

// settlementCaller is the caller identity x/escrow.Keeper.Refund
// accepts unconditionally on the settlement module's behalf regardless
// of the escrow's own expiry, used by the Phase 1b compensation refund
// and by escrowAdapter.Refund.
const settlementCaller = "settlement"

// escrowAdapter narrows x/escrow.Keeper's Release/Refund (which carry
// the extra now/caller parameters a direct user-facing call needs) to
// the settlementtypes.EscrowKeeper shape the settlement state machine
// expects, the same way a chain would adapt one module's keeper to
// another's expected_keepers interface.
type escrowAdapter struct {
	escrow escrowkeeper.Keeper
}

var _ settlementtypes.EscrowKeeper = escrowAdapter{}

func newEscrowAdapter(escrow escrowkeeper.Keeper) escrowAdapter {
	return escrowAdapter{escrow: escrow}
}

func (a escrowAdapter) Release(ctx context.Context, escrowID string, recipient sdk.AccAddress) error {
	return a.escrow.Release(ctx, escrowID, recipient, time.Now())
}

func (a escrowAdapter) Refund(ctx context.Context, escrowID string) error {
	return a.escrow.Refund(ctx, escrowID, settlementCaller, time.Now())
}
