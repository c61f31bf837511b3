package coordinator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/pkg/coordinator"
	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

type fakeEscrow struct {
	locked   map[string]bool
	refunds  []string
	failLock bool
}

func newFakeEscrow() *fakeEscrow { return &fakeEscrow{locked: map[string]bool{}} }

func (f *fakeEscrow) Lock(_ context.Context, escrowID, _, _, _, _, _ string, _ sdkmath.Int, _, _ time.Time, _, _ time.Duration) error {
	if f.failLock {
		return errEscrowLockFailed
	}
	f.locked[escrowID] = true
	return nil
}

func (f *fakeEscrow) Refund(_ context.Context, escrowID, _ string, _ time.Time) error {
	f.refunds = append(f.refunds, escrowID)
	return nil
}

var errEscrowLockFailed = errors.New("escrow lock failed")

type fakeSettlement struct {
	records  map[string]settlementtypes.Record
	failSolverLock bool
}

func newFakeSettlement() *fakeSettlement {
	return &fakeSettlement{records: map[string]settlementtypes.Record{}}
}

func (f *fakeSettlement) CreateSettlement(_ context.Context, rec settlementtypes.Record) error {
	rec.Status = settlementtypes.Pending
	f.records[rec.SettlementID] = rec
	return nil
}

func (f *fakeSettlement) Get(_ context.Context, id string) (settlementtypes.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return settlementtypes.Record{}, settlementtypes.ErrNotFound
	}
	return rec, nil
}

func (f *fakeSettlement) MarkUserLocked(_ context.Context, id, _ string) error {
	rec := f.records[id]
	rec.Status = settlementtypes.UserLocked
	f.records[id] = rec
	return nil
}

func (f *fakeSettlement) MarkSolverLocked(_ context.Context, id, _ string) error {
	rec := f.records[id]
	rec.Status = settlementtypes.SolverLocked
	f.records[id] = rec
	return nil
}

func (f *fakeSettlement) ExecuteSettlement(_ context.Context, id, _ string, now time.Time) error {
	rec := f.records[id]
	rec.Status = settlementtypes.Executing
	rec.Deadline = now.Add(time.Minute)
	f.records[id] = rec
	return nil
}

func (f *fakeSettlement) MarkFailed(_ context.Context, id, _, reason string) error {
	rec := f.records[id]
	rec.Status = settlementtypes.Failed
	rec.FailReason = reason
	f.records[id] = rec
	return nil
}

func (f *fakeSettlement) HandleIBCAck(_ context.Context, id, _ string, success bool) error {
	rec := f.records[id]
	if success {
		rec.Status = settlementtypes.Completed
	} else {
		rec.Status = settlementtypes.Failed
		rec.FailReason = "ack_failure"
	}
	f.records[id] = rec
	return nil
}

func (f *fakeSettlement) HandleTimeout(_ context.Context, id, _ string, _ time.Time) error {
	rec := f.records[id]
	rec.Status = settlementtypes.Failed
	rec.FailReason = "timeout"
	f.records[id] = rec
	return nil
}

type fakeRegistry struct {
	reserved map[string]sdkmath.Int
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{reserved: map[string]sdkmath.Int{}} }

func (f *fakeRegistry) ReserveExposure(_ context.Context, solverID string, amount sdkmath.Int) error {
	f.reserved[solverID] = amount
	return nil
}

func (f *fakeRegistry) ReleaseExposure(_ context.Context, solverID string, _ sdkmath.Int) error {
	delete(f.reserved, solverID)
	return nil
}

type fakeExecutor struct{ calls int }

func (f *fakeExecutor) Execute(context.Context, *wasmtypes.MsgExecuteContract) (*wasmtypes.MsgExecuteContractResponse, error) {
	f.calls++
	return &wasmtypes.MsgExecuteContractResponse{}, nil
}

func newTestCoordinator(t *testing.T) (*coordinator.Coordinator, *fakeEscrow, *fakeSettlement, *fakeRegistry) {
	t.Helper()
	escrow := newFakeEscrow()
	settlement := newFakeSettlement()
	registry := newFakeRegistry()
	vault := coordinator.NewVaultClient(&fakeExecutor{}, "cosmos1authority")
	c := coordinator.New(log.NewNopLogger(), escrow, settlement, registry, vault, nil, nil, "cosmos1authority")
	return c, escrow, settlement, registry
}

func testIntent(solverID string) (intenttypes.Intent, coordinator.Solution, coordinator.Config) {
	intent := intenttypes.Intent{
		ID:   "intent-1",
		User: "cosmos1user",
		Input: intenttypes.CoinAmount{
			Chain:  "chainA",
			Denom:  "uatom",
			Amount: sdkmath.NewInt(1000),
		},
	}
	solution := coordinator.Solution{
		SolverID:       solverID,
		SolverOperator: "cosmos1solver",
		VaultContract:  "cosmos1vault",
		OutputDenom:    "uosmo",
		OutputAmount:   sdkmath.NewInt(900),
		Bond:           sdkmath.NewInt(2000),
	}
	cfg := coordinator.Config{
		Atomicity:        coordinator.Sequential,
		SourceChannel:    "channel-0",
		IBCTimeoutSecs:   60,
		SafetyBufferSecs: 30,
	}
	return intent, solution, cfg
}

func TestSettleSequentialHappyPath(t *testing.T) {
	c, escrow, settlement, registry := newTestCoordinator(t)
	intent, solution, cfg := testIntent("solver1")
	now := time.Now()

	id, err := c.Settle(context.Background(), intent, solution, cfg, now)
	require.NoError(t, err)
	require.True(t, escrow.locked[id])
	require.Equal(t, settlementtypes.Executing, settlement.records[id].Status)
	require.Contains(t, registry.reserved, "solver1")
}

func TestSettleAtomicHappyPath(t *testing.T) {
	c, escrow, settlement, _ := newTestCoordinator(t)
	intent, solution, cfg := testIntent("solver2")
	cfg.Atomicity = coordinator.Atomic
	now := time.Now()

	id, err := c.Settle(context.Background(), intent, solution, cfg, now)
	require.NoError(t, err)
	require.True(t, escrow.locked[id])
	require.Equal(t, settlementtypes.Executing, settlement.records[id].Status)
}

func TestHandleAckSuccessReleasesExposure(t *testing.T) {
	c, _, settlement, registry := newTestCoordinator(t)
	intent, solution, cfg := testIntent("solver3")
	now := time.Now()
	id, err := c.Settle(context.Background(), intent, solution, cfg, now)
	require.NoError(t, err)

	require.NoError(t, c.HandleAck(context.Background(), id, true, now))
	require.Equal(t, settlementtypes.Completed, settlement.records[id].Status)
	require.NotContains(t, registry.reserved, "solver3")
}

func TestHandleAckFailureMarksFailed(t *testing.T) {
	c, _, settlement, _ := newTestCoordinator(t)
	intent, solution, cfg := testIntent("solver4")
	now := time.Now()
	id, err := c.Settle(context.Background(), intent, solution, cfg, now)
	require.NoError(t, err)

	require.NoError(t, c.HandleAck(context.Background(), id, false, now))
	require.Equal(t, settlementtypes.Failed, settlement.records[id].Status)
}

func TestHandleTimeoutMarksFailed(t *testing.T) {
	c, _, settlement, _ := newTestCoordinator(t)
	intent, solution, cfg := testIntent("solver5")
	now := time.Now()
	id, err := c.Settle(context.Background(), intent, solution, cfg, now)
	require.NoError(t, err)

	require.NoError(t, c.HandleTimeout(context.Background(), id, now.Add(time.Hour)))
	require.Equal(t, settlementtypes.Failed, settlement.records[id].Status)
	require.Equal(t, "timeout", settlement.records[id].FailReason)
}

func TestResumeExecutesPendingSolverLockedSettlement(t *testing.T) {
	c, _, settlement, _ := newTestCoordinator(t)
	now := time.Now()
	rec := settlementtypes.Record{SettlementID: "s1", Status: settlementtypes.SolverLocked}
	settlement.records["s1"] = rec

	require.NoError(t, c.Resume(context.Background(), "s1", now))
	require.Equal(t, settlementtypes.Executing, settlement.records["s1"].Status)
}

func TestResumeHandlesPastDeadlineExecutingSettlement(t *testing.T) {
	c, _, settlement, _ := newTestCoordinator(t)
	now := time.Now()
	rec := settlementtypes.Record{SettlementID: "s2", Status: settlementtypes.Executing, Deadline: now.Add(-time.Minute)}
	settlement.records["s2"] = rec

	require.NoError(t, c.Resume(context.Background(), "s2", now))
	require.Equal(t, settlementtypes.Failed, settlement.records["s2"].Status)
}

func TestResumeLeavesExecutingSettlementBeforeDeadlineAlone(t *testing.T) {
	c, _, settlement, _ := newTestCoordinator(t)
	now := time.Now()
	rec := settlementtypes.Record{SettlementID: "s3", Status: settlementtypes.Executing, Deadline: now.Add(time.Minute)}
	settlement.records["s3"] = rec

	require.NoError(t, c.Resume(context.Background(), "s3", now))
	require.Equal(t, settlementtypes.Executing, settlement.records["s3"].Status)
}
