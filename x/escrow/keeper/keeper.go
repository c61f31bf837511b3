// Package keeper implements the escrow contract: lock/release/refund
// plus an ibc-hooks-style entry point for funds that arrive already
// escrowed by an inbound IBC transfer.
package keeper

import (
	"context"
	"errors"
	"strings"
	"time"

	"cosmossdk.io/collections"
	sdkstore "cosmossdk.io/core/store"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"

	"github.com/tokenize-x/intent-swap-core/pkg/collutil"
	"github.com/tokenize-x/intent-swap-core/x/escrow/types"
)

// ModuleAccountName is the module account that custodies locked funds.
const ModuleAccountName = types.ModuleName

// Keeper implements lock/release/refund/lock_from_ibc over a
// cosmossdk.io/collections-backed escrow table.
type Keeper struct {
	storeService sdkstore.KVStoreService
	chainID      string

	bankKeeper     types.BankKeeper
	transferKeeper types.TransferKeeper

	Schema  collections.Schema
	Escrows collections.Map[string, types.Escrow]
}

// NewKeeper returns a new escrow keeper. chainID identifies this
// chain so Refund can tell a same-chain owner from a cross-chain one.
func NewKeeper(storeService sdkstore.KVStoreService, chainID string, bankKeeper types.BankKeeper, transferKeeper types.TransferKeeper) Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := Keeper{
		storeService:   storeService,
		chainID:        chainID,
		bankKeeper:     bankKeeper,
		transferKeeper: transferKeeper,
		Escrows: collections.NewMap(
			sb,
			collections.NewPrefix(0),
			"escrows",
			collections.StringKey,
			collutil.NewJSONValue[types.Escrow]("Escrow"),
		),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema
	return k
}

// Get returns escrowID's persisted record.
func (k Keeper) Get(ctx context.Context, escrowID string) (types.Escrow, error) {
	return k.get(ctx, escrowID)
}

func (k Keeper) get(ctx context.Context, escrowID string) (types.Escrow, error) {
	e, err := k.Escrows.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.Escrow{}, types.ErrNotFound
		}
		return types.Escrow{}, err
	}
	return e, nil
}

// priorLockCheck enforces the "owner ≠ prior locker" guard: a
// still-open lock under escrowID is always a conflict, and a terminal
// record under escrowID may not be reused by the same owner to lock
// again (escrow_id is meant to be single-use per owner).
func (k Keeper) priorLockCheck(ctx context.Context, escrowID, owner string) error {
	prior, err := k.get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return err
	}
	if prior.Status == types.Locked || prior.Status == types.Refunding {
		return types.ErrAlreadyLocked
	}
	if prior.Owner == owner {
		return types.ErrPriorLockerReuse
	}
	return nil
}

// Lock records escrowID as Locked, backing funds the caller has
// already moved into the escrow module account. It enforces the
// timeout safety invariant that expiresAt clears the IBC round trip
// this escrow is meant to backstop.
func (k Keeper) Lock(
	ctx context.Context,
	escrowID, intentID, owner, ownerChain, sourceChannel, denom string,
	amount sdkmath.Int,
	expiresAt, now time.Time,
	ibcTimeout, safetyBuffer time.Duration,
) error {
	if err := k.priorLockCheck(ctx, escrowID, owner); err != nil {
		return err
	}
	if !types.TimeoutInvariantSatisfied(expiresAt, now, ibcTimeout, safetyBuffer) {
		return types.ErrTimeoutInvariantViolated
	}
	return k.Escrows.Set(ctx, escrowID, types.Escrow{
		EscrowID:      escrowID,
		IntentID:      intentID,
		Owner:         owner,
		OwnerChain:    ownerChain,
		Denom:         denom,
		Amount:        amount,
		SourceChannel: sourceChannel,
		Status:        types.Locked,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	})
}

// LockFromIBC is the escrow contract's ibc-hooks-style entry point:
// funds already arrived as a single IBC-denominated transfer and are
// locked on the spot, rather than a prior SDK tx moving them into the
// module account first. The accompanying packet is validated to carry
// exactly one ibc/ denominated coin before the lock is recorded.
func (k Keeper) LockFromIBC(
	ctx context.Context,
	escrowID, intentID string,
	packetData transfertypes.FungibleTokenPacketData,
	ownerChain, sourceChannel string,
	expiresAt, now time.Time,
	ibcTimeout, safetyBuffer time.Duration,
) error {
	denom := packetData.Denom
	if !strings.HasPrefix(denom, "ibc/") && !strings.Contains(denom, "/") {
		return types.ErrInvalidIBCCoins
	}
	amount, ok := sdkmath.NewIntFromString(packetData.Amount)
	if !ok || !amount.IsPositive() {
		return types.ErrInvalidIBCCoins
	}
	return k.Lock(ctx, escrowID, intentID, packetData.Sender, ownerChain, sourceChannel, denom, amount, expiresAt, now, ibcTimeout, safetyBuffer)
}

// Release pays a Locked escrow out to recipient and marks it Released.
// It is only valid strictly before ExpiresAt: once an escrow has
// expired, Release must lose the race to Refund so a solver can never
// collect twice.
func (k Keeper) Release(ctx context.Context, escrowID string, recipient sdk.AccAddress, now time.Time) error {
	e, err := k.get(ctx, escrowID)
	if err != nil {
		return err
	}
	if e.Status != types.Locked {
		return types.ErrNotLocked
	}
	if !now.Before(e.ExpiresAt) {
		return types.ErrEscrowExpired
	}
	coins := sdk.NewCoins(sdk.NewCoin(e.Denom, e.Amount))
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, ModuleAccountName, recipient, coins); err != nil {
		return err
	}
	e.Status = types.Released
	e.ReleasedTo = recipient.String()
	return k.Escrows.Set(ctx, escrowID, e)
}

// Refund returns a Locked escrow's funds to its owner. It is callable
// by the owner once ExpiresAt has passed, or at any time by caller ==
// "settlement" on settlement failure. Funds move locally if the owner
// lives on this chain, otherwise over SourceChannel back to
// OwnerChain.
func (k Keeper) Refund(ctx context.Context, escrowID, caller string, now time.Time) error {
	e, err := k.get(ctx, escrowID)
	if err != nil {
		return err
	}
	if e.Status != types.Locked {
		return types.ErrNotLocked
	}
	if caller != "settlement" && caller != e.Owner {
		return types.ErrUnauthorized
	}
	if caller == e.Owner && !now.After(e.ExpiresAt) {
		return types.ErrNotYetExpired
	}

	if e.OwnerChain == "" || e.OwnerChain == k.chainID {
		ownerAddr, err := sdk.AccAddressFromBech32(e.Owner)
		if err != nil {
			return err
		}
		coins := sdk.NewCoins(sdk.NewCoin(e.Denom, e.Amount))
		if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, ModuleAccountName, ownerAddr, coins); err != nil {
			return err
		}
		e.Status = types.Refunded
		return k.Escrows.Set(ctx, escrowID, e)
	}

	timeout := now.Add(safetyIBCRefundWindow)
	msg := &transfertypes.MsgTransfer{
		SourcePort:       transfertypes.PortID,
		SourceChannel:    e.SourceChannel,
		Token:            sdk.NewCoin(e.Denom, e.Amount),
		Sender:           authtypes.NewModuleAddress(ModuleAccountName).String(),
		Receiver:         e.Owner,
		TimeoutHeight:    clienttypes.ZeroHeight(),
		TimeoutTimestamp: uint64(timeout.UnixNano()),
		Memo:             escrowID,
	}
	resp, err := k.transferKeeper.Transfer(ctx, msg)
	if err != nil {
		return err
	}

	e.Status = types.Refunding
	e.RefundPacketSequence = resp.Sequence
	return k.Escrows.Set(ctx, escrowID, e)
}

// ConfirmRefund resolves a cross-chain refund's own IBC
// acknowledgement: success finalizes the escrow as Refunded; failure
// or timeout reopens it to Locked so Refund can be retried (the
// original amount never left the module account's custody while
// Refunding — only the IBC transfer's proof of delivery was
// outstanding).
func (k Keeper) ConfirmRefund(ctx context.Context, escrowID string, success bool) error {
	e, err := k.get(ctx, escrowID)
	if err != nil {
		return err
	}
	if e.Status != types.Refunding {
		return types.ErrNotRefunding
	}
	if success {
		e.Status = types.Refunded
	} else {
		e.Status = types.Locked
		e.RefundPacketSequence = 0
	}
	return k.Escrows.Set(ctx, escrowID, e)
}

// safetyIBCRefundWindow bounds how long a refund's own IBC transfer is
// given to land; it is independent of the escrow's original expiry.
const safetyIBCRefundWindow = 10 * time.Minute
