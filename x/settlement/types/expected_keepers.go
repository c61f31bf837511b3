package types

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
)

// TransferKeeper is the IBC transfer module's keeper surface the
// settlement module dispatches through on execute_settlement.
type TransferKeeper interface {
	Transfer(ctx context.Context, msg *transfertypes.MsgTransfer) (*transfertypes.MsgTransferResponse, error)
}

// EscrowKeeper is the cross-contract call surface the settlement state
// machine drives on ack/timeout.
type EscrowKeeper interface {
	Release(ctx context.Context, escrowID string, recipient sdk.AccAddress) error
	Refund(ctx context.Context, escrowID string) error
}

// SolverRegistryKeeper exposes the bond-slashing surface the
// settlement module calls on a solver-fault failure.
type SolverRegistryKeeper interface {
	Slash(ctx context.Context, solver string, amount sdkmath.Int) error
}
