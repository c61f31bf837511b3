// Package keeper implements the on-chain settlement state machine: a
// cosmossdk.io/collections-backed record per settlement, advanced one
// authorized entry point at a time, dispatching the IBC transfer and
// driving escrow release/refund on ack/timeout.
package keeper

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/collections"
	sdkstore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"

	"github.com/tokenize-x/intent-swap-core/pkg/collutil"
	"github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

// Keeper drives the settlement state machine.
type Keeper struct {
	storeService sdkstore.KVStoreService
	authority    string

	transferKeeper types.TransferKeeper
	escrowKeeper   types.EscrowKeeper
	solverRegistry types.SolverRegistryKeeper

	Schema      collections.Schema
	Params      collections.Item[types.Params]
	Settlements collections.Map[string, types.Record]
}

// NewKeeper returns a new settlement keeper. authority is the admin
// address, the trusted IBC callback path.
func NewKeeper(
	storeService sdkstore.KVStoreService,
	authority string,
	transferKeeper types.TransferKeeper,
	escrowKeeper types.EscrowKeeper,
	solverRegistry types.SolverRegistryKeeper,
	params types.Params,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := Keeper{
		storeService:   storeService,
		authority:      authority,
		transferKeeper: transferKeeper,
		escrowKeeper:   escrowKeeper,
		solverRegistry: solverRegistry,
		Params: collections.NewItem(
			sb,
			collections.NewPrefix(0),
			"params",
			collutil.NewJSONValue[types.Params]("Params"),
		),
		Settlements: collections.NewMap(
			sb,
			collections.NewPrefix(1),
			"settlements",
			collections.StringKey,
			collutil.NewJSONValue[types.Record]("Record"),
		),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema

	if err := k.Params.Set(context.Background(), params); err != nil {
		// A bare context is fine here: Set only fails on codec errors,
		// which would indicate a programmer error in types.Params.
		panic(err)
	}

	return k
}

// CreateSettlement records a new settlement in Pending status.
// SettlementID must be unique.
func (k Keeper) CreateSettlement(ctx context.Context, rec types.Record) error {
	has, err := k.Settlements.Has(ctx, rec.SettlementID)
	if err != nil {
		return err
	}
	if has {
		return types.ErrAlreadyExists
	}
	rec.Status = types.Pending
	return k.Settlements.Set(ctx, rec.SettlementID, rec)
}

// Get returns the settlement record for id.
func (k Keeper) Get(ctx context.Context, id string) (types.Record, error) {
	rec, err := k.Settlements.Get(ctx, id)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.Record{}, types.ErrNotFound
		}
		return types.Record{}, err
	}
	return rec, nil
}

// ListNonTerminal returns every settlement not yet in Completed or
// Failed, for a recovering coordinator's crash-restart sweep.
func (k Keeper) ListNonTerminal(ctx context.Context) ([]types.Record, error) {
	var records []types.Record
	err := k.Settlements.Walk(ctx, nil, func(_ string, rec types.Record) (bool, error) {
		if !rec.Status.Terminal() {
			records = append(records, rec)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (k Keeper) isAdmin(caller string) bool {
	return caller == k.authority
}

func (k Keeper) isUserOrAdmin(rec types.Record, caller string) bool {
	return caller == rec.User || k.isAdmin(caller)
}

func (k Keeper) isSolverOperator(rec types.Record, caller string) bool {
	return caller == rec.SolverOperator
}

func (k Keeper) isAdminOrSolverOperator(rec types.Record, caller string) bool {
	return k.isAdmin(caller) || k.isSolverOperator(rec, caller)
}

// transition validates rec is in from and caller is authorized,
// applies mutate, and persists the result. It is the single choke
// point every simple state-changing entry point in this keeper
// funnels through.
func (k Keeper) transition(ctx context.Context, id string, authorize func(types.Record) bool, from types.State, mutate func(*types.Record)) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	if !authorize(rec) {
		return types.ErrUnauthorized
	}
	if rec.Status != from {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "from %s required, have %s", from, rec.Status)
	}
	mutate(&rec)
	return k.Settlements.Set(ctx, id, rec)
}

// MarkUserLocked is the user-lock phase's completion: Pending -> UserLocked.
// Caller must be the settlement's user or admin.
func (k Keeper) MarkUserLocked(ctx context.Context, id, caller string) error {
	return k.transition(ctx, id, func(r types.Record) bool { return k.isUserOrAdmin(r, caller) }, types.Pending, func(r *types.Record) {
		r.Status = types.UserLocked
	})
}

// MarkSolverLocked is the solver-lock phase's completion: UserLocked -> SolverLocked.
// Caller must be the solver's registered operator.
func (k Keeper) MarkSolverLocked(ctx context.Context, id, caller string) error {
	return k.transition(ctx, id, func(r types.Record) bool { return k.isSolverOperator(r, caller) }, types.UserLocked, func(r *types.Record) {
		r.Status = types.SolverLocked
	})
}

// MarkExecuting transitions SolverLocked -> Executing without
// dispatching an IBC transfer, for operators recovering a settlement
// whose packet was already sent out-of-band. Caller must be admin or
// the solver operator.
func (k Keeper) MarkExecuting(ctx context.Context, id, caller string) error {
	return k.transition(ctx, id, func(r types.Record) bool { return k.isAdminOrSolverOperator(r, caller) }, types.SolverLocked, func(r *types.Record) {
		r.Status = types.Executing
	})
}

// ExecuteSettlement dispatches the output IBC transfer and transitions
// SolverLocked -> Executing, recording the packet sequence and the
// ack/timeout deadline. Caller must be admin or the solver operator.
func (k Keeper) ExecuteSettlement(ctx context.Context, id, caller string, now time.Time) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	if !k.isAdminOrSolverOperator(rec, caller) {
		return types.ErrUnauthorized
	}
	if rec.Status != types.SolverLocked {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "from %s required, have %s", types.SolverLocked, rec.Status)
	}

	timeout := now.Add(time.Duration(rec.IBCTimeoutSecs) * time.Second)
	msg := &transfertypes.MsgTransfer{
		SourcePort:       transfertypes.PortID,
		SourceChannel:    rec.SourceChannel,
		Token:            sdk.NewCoin(rec.OutputDenom, rec.OutputAmount),
		Sender:           k.authority,
		Receiver:         rec.User,
		TimeoutHeight:    clienttypes.ZeroHeight(),
		TimeoutTimestamp: uint64(timeout.UnixNano()),
		Memo:             rec.SettlementID,
	}
	resp, err := k.transferKeeper.Transfer(ctx, msg)
	if err != nil {
		return err
	}

	rec.Status = types.Executing
	rec.PacketSequence = resp.Sequence
	rec.Deadline = now.Add(time.Duration(rec.IBCTimeoutSecs+rec.SafetyBufferSecs) * time.Second)
	return k.Settlements.Set(ctx, id, rec)
}

// MarkCompleted finalizes Executing -> Completed. Admin only (the
// trusted IBC callback path).
func (k Keeper) MarkCompleted(ctx context.Context, id, caller string) error {
	return k.transition(ctx, id, func(types.Record) bool { return k.isAdmin(caller) }, types.Executing, func(r *types.Record) {
		r.Status = types.Completed
	})
}

// MarkFailed drives any non-terminal settlement to Failed{reason}.
// Admin only.
func (k Keeper) MarkFailed(ctx context.Context, id, caller, reason string) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	if !k.isAdmin(caller) {
		return types.ErrUnauthorized
	}
	if rec.Status.Terminal() {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "settlement %s already terminal at %s", id, rec.Status)
	}
	rec.Status = types.Failed
	rec.FailReason = reason
	return k.Settlements.Set(ctx, id, rec)
}

// HandleIBCAck handles the output transfer's ack: on success the
// settlement completes and the escrow releases to the solver operator;
// on failure it fails and the escrow refunds the user. Admin only (the
// trusted IBC callback path).
func (k Keeper) HandleIBCAck(ctx context.Context, id, caller string, success bool) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	if !k.isAdmin(caller) {
		return types.ErrUnauthorized
	}
	if rec.Status != types.Executing {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "from %s required, have %s", types.Executing, rec.Status)
	}

	if success {
		rec.Status = types.Completed
		if err := k.Settlements.Set(ctx, id, rec); err != nil {
			return err
		}
		solverAddr, err := sdk.AccAddressFromBech32(rec.SolverOperator)
		if err != nil {
			return err
		}
		return k.escrowKeeper.Release(ctx, rec.EscrowID, solverAddr)
	}

	rec.Status = types.Failed
	rec.FailReason = "ack_failure"
	if err := k.Settlements.Set(ctx, id, rec); err != nil {
		return err
	}
	return k.escrowKeeper.Refund(ctx, rec.EscrowID)
}

// HandleTimeout handles a settlement past its ack/timeout deadline: it
// fails with reason "timeout" and its escrow refunds. Its solver is
// slashed for the fault unless RelayerGaveUp is set — a relayer that
// exhausted MAX_ATTEMPTS trying to deliver the ack is a relay-
// infrastructure failure, not a verified solver fault, so that case
// unlocks without slashing. Admin only.
func (k Keeper) HandleTimeout(ctx context.Context, id, caller string, now time.Time) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	if !k.isAdmin(caller) {
		return types.ErrUnauthorized
	}
	if rec.Status != types.Executing {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "from %s required, have %s", types.Executing, rec.Status)
	}
	if now.Before(rec.Deadline) {
		return errorsmod.Wrapf(types.ErrInvalidStateTransition, "settlement %s not yet past its deadline", id)
	}

	rec.Status = types.Failed
	rec.FailReason = "timeout"
	if err := k.Settlements.Set(ctx, id, rec); err != nil {
		return err
	}

	if err := k.escrowKeeper.Refund(ctx, rec.EscrowID); err != nil {
		return err
	}

	if rec.RelayerGaveUp {
		return nil
	}

	params, err := k.Params.Get(ctx)
	if err != nil {
		return err
	}
	slash := types.ComputeSlash(params.MinSlash, rec.SolverBond, rec.InputAmount, rec.BaseSlashBps)
	if !slash.IsPositive() {
		return nil
	}
	return k.solverRegistry.Slash(ctx, rec.SolverOperator, slash)
}

// MarkRelayerGivenUp records that this settlement's packet exhausted
// pkg/relayer's retry budget without an ack. It is called internally
// from the relayer's give-up hook, not through an authorized message
// path: the relayer process is the only thing that knows its own
// attempt count, and that fact is not itself a state transition, just
// an input HandleTimeout later reads.
func (k Keeper) MarkRelayerGivenUp(ctx context.Context, id string) error {
	rec, err := k.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.RelayerGaveUp = true
	return k.Settlements.Set(ctx, id, rec)
}
