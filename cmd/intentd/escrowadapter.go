package main

import (
	"context"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	escrowkeeper "github.com/tokenize-x/intent-swap-core/x/escrow/keeper"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

// settlementEscrowAdapter narrows x/escrow.Keeper's Release/Refund to
// the settlementtypes.EscrowKeeper shape the settlement state machine
// expects. It duplicates pkg/coordinator's unexported escrowAdapter,
// which nothing outside that package can construct; the coordinator
// itself talks to the escrow keeper directly through its EscrowLocker
// interface.
type settlementEscrowAdapter struct {
	escrow escrowkeeper.Keeper
}

var _ settlementtypes.EscrowKeeper = settlementEscrowAdapter{}

func (a settlementEscrowAdapter) Release(ctx context.Context, escrowID string, recipient sdk.AccAddress) error {
	return a.escrow.Release(ctx, escrowID, recipient, time.Now())
}

func (a settlementEscrowAdapter) Refund(ctx context.Context, escrowID string) error {
	return a.escrow.Refund(ctx, escrowID, "settlement", time.Now())
}
