package keeper_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/testutil/storetest"
	"github.com/tokenize-x/intent-swap-core/x/settlement/keeper"
	"github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

const (
	admin   = "cosmos1admin"
	user    = "cosmos1user"
)

var solverOp = sdk.AccAddress("solverop____________").String()

type stubTransferKeeper struct {
	sequence uint64
	err      error
}

func (s *stubTransferKeeper) Transfer(context.Context, *transfertypes.MsgTransfer) (*transfertypes.MsgTransferResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &transfertypes.MsgTransferResponse{Sequence: s.sequence}, nil
}

type stubEscrowKeeper struct {
	released []string
	refunded []string
}

func (s *stubEscrowKeeper) Release(_ context.Context, escrowID string, _ sdk.AccAddress) error {
	s.released = append(s.released, escrowID)
	return nil
}

func (s *stubEscrowKeeper) Refund(_ context.Context, escrowID string) error {
	s.refunded = append(s.refunded, escrowID)
	return nil
}

type stubSolverRegistry struct {
	slashedSolver string
	slashedAmount sdkmath.Int
}

func (s *stubSolverRegistry) Slash(_ context.Context, solver string, amount sdkmath.Int) error {
	s.slashedSolver = solver
	s.slashedAmount = amount
	return nil
}

func newTestKeeper(t *testing.T) (context.Context, keeper.Keeper, *stubTransferKeeper, *stubEscrowKeeper, *stubSolverRegistry) {
	ctx, storeService := storetest.NewContext(t)
	transferK := &stubTransferKeeper{sequence: 42}
	escrowK := &stubEscrowKeeper{}
	registryK := &stubSolverRegistry{}
	k := keeper.NewKeeper(storeService, admin, transferK, escrowK, registryK, types.Params{MinSlash: sdkmath.NewInt(10)})
	return ctx, k, transferK, escrowK, registryK
}

func baseRecord(id string) types.Record {
	return types.Record{
		SettlementID:     id,
		User:             user,
		SolverOperator:   solverOp,
		InputDenom:       "uatom",
		InputAmount:      sdkmath.NewInt(1000),
		OutputDenom:      "uosmo",
		OutputAmount:     sdkmath.NewInt(1045),
		EscrowID:         "escrow1",
		SourceChannel:    "channel-0",
		IBCTimeoutSecs:   60,
		SafetyBufferSecs: 30,
		SolverBond:       sdkmath.NewInt(500),
		BaseSlashBps:     100,
	}
}

func TestSettlementHappyPath(t *testing.T) {
	ctx, k, _, escrowK, _ := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))

	require.NoError(t, k.MarkUserLocked(ctx, "S1", user))
	require.NoError(t, k.MarkSolverLocked(ctx, "S1", solverOp))
	require.NoError(t, k.ExecuteSettlement(ctx, "S1", admin, time.Now()))

	rec, err := k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Executing, rec.Status)
	require.Equal(t, uint64(42), rec.PacketSequence)

	require.NoError(t, k.HandleIBCAck(ctx, "S1", admin, true))
	rec, err = k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Completed, rec.Status)
	require.Equal(t, []string{"escrow1"}, escrowK.released)
}

func TestSettlementAckFailureRefunds(t *testing.T) {
	ctx, k, _, escrowK, _ := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))
	require.NoError(t, k.MarkUserLocked(ctx, "S1", user))
	require.NoError(t, k.MarkSolverLocked(ctx, "S1", solverOp))
	require.NoError(t, k.ExecuteSettlement(ctx, "S1", admin, time.Now()))

	require.NoError(t, k.HandleIBCAck(ctx, "S1", admin, false))
	rec, err := k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Failed, rec.Status)
	require.Equal(t, "ack_failure", rec.FailReason)
	require.Equal(t, []string{"escrow1"}, escrowK.refunded)
}

func TestSettlementTimeoutRefundsAndSlashes(t *testing.T) {
	ctx, k, _, escrowK, registryK := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))
	require.NoError(t, k.MarkUserLocked(ctx, "S1", user))
	require.NoError(t, k.MarkSolverLocked(ctx, "S1", solverOp))

	start := time.Now()
	require.NoError(t, k.ExecuteSettlement(ctx, "S1", admin, start))

	past := start.Add(91 * time.Second) // > ibc_timeout + safety_buffer
	require.NoError(t, k.HandleTimeout(ctx, "S1", admin, past))

	rec, err := k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Failed, rec.Status)
	require.Equal(t, "timeout", rec.FailReason)
	require.Equal(t, []string{"escrow1"}, escrowK.refunded)

	// slash = max(MinSlash=10, min(bond=500, 1000*100/10000=10)) = 10
	require.Equal(t, solverOp, registryK.slashedSolver)
	require.True(t, registryK.slashedAmount.Equal(sdkmath.NewInt(10)))
}

func TestSettlementTimeoutSkipsSlashWhenRelayerGaveUp(t *testing.T) {
	ctx, k, _, escrowK, registryK := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))
	require.NoError(t, k.MarkUserLocked(ctx, "S1", user))
	require.NoError(t, k.MarkSolverLocked(ctx, "S1", solverOp))

	start := time.Now()
	require.NoError(t, k.ExecuteSettlement(ctx, "S1", admin, start))
	require.NoError(t, k.MarkRelayerGivenUp(ctx, "S1"))

	past := start.Add(91 * time.Second)
	require.NoError(t, k.HandleTimeout(ctx, "S1", admin, past))

	rec, err := k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Failed, rec.Status)
	require.Equal(t, "timeout", rec.FailReason)
	require.Equal(t, []string{"escrow1"}, escrowK.refunded)

	require.Empty(t, registryK.slashedSolver)
	require.True(t, registryK.slashedAmount.IsNil())
}

func TestSettlementUnauthorizedTransitionRejected(t *testing.T) {
	ctx, k, _, _, _ := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))

	err := k.MarkCompleted(ctx, "S1", "cosmos1rando")
	require.ErrorIs(t, err, types.ErrUnauthorized)

	rec, err := k.Get(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, types.Pending, rec.Status)
}

func TestSettlementInvalidStateTransitionRejected(t *testing.T) {
	ctx, k, _, _, _ := newTestKeeper(t)
	require.NoError(t, k.CreateSettlement(ctx, baseRecord("S1")))

	err := k.MarkSolverLocked(ctx, "S1", solverOp)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)
}
