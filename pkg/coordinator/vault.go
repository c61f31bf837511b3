package coordinator

import (
	"context"
	"encoding/json"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
)

// WasmExecutor is the narrow CosmWasm dispatch surface the solver
// vault calls go through; a chain's wasmd MsgServer satisfies it.
type WasmExecutor interface {
	Execute(ctx context.Context, msg *wasmtypes.MsgExecuteContract) (*wasmtypes.MsgExecuteContractResponse, error)
}

// lockOutputMsg and unlockOutputMsg are the solver vault contract's
// exec message shapes for Phase 1b's reservation and its release or
// compensation.
type lockOutputMsg struct {
	LockOutput vaultLockPayload `json:"lock_output"`
}

type vaultLockPayload struct {
	SettlementID string `json:"settlement_id"`
	Denom        string `json:"denom"`
	Amount       string `json:"amount"`
}

type releaseOutputMsg struct {
	ReleaseOutput vaultSettlementPayload `json:"release_output"`
}

type unlockOutputMsg struct {
	UnlockOutput vaultSettlementPayload `json:"unlock_output"`
}

type vaultSettlementPayload struct {
	SettlementID string `json:"settlement_id"`
}

// VaultClient drives the CosmWasm solver vault contract named in a
// Solution: reserve output funds for Phase 1b, then either release
// them into the dispatched transfer or unlock them back to the
// solver on compensation/failure.
type VaultClient struct {
	executor WasmExecutor
	sender   string // bech32 address the coordinator executes contract calls as
}

// NewVaultClient returns a VaultClient dispatching through executor as sender.
func NewVaultClient(executor WasmExecutor, sender string) VaultClient {
	return VaultClient{executor: executor, sender: sender}
}

func (v VaultClient) exec(ctx context.Context, contract string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = v.executor.Execute(ctx, &wasmtypes.MsgExecuteContract{
		Sender:   v.sender,
		Contract: contract,
		Msg:      msgBytes,
	})
	return err
}

// LockSolverOutput reserves solution's output amount in its vault
// contract for settlementID.
func (v VaultClient) LockSolverOutput(ctx context.Context, settlementID string, solution Solution) error {
	return v.exec(ctx, solution.VaultContract, lockOutputMsg{LockOutput: vaultLockPayload{
		SettlementID: settlementID,
		Denom:        solution.OutputDenom,
		Amount:       solution.OutputAmount.String(),
	}})
}

// ReleaseSolverOutput confirms a settled Phase 1b reservation once the
// settlement completes.
func (v VaultClient) ReleaseSolverOutput(ctx context.Context, contract, settlementID string) error {
	return v.exec(ctx, contract, releaseOutputMsg{ReleaseOutput: vaultSettlementPayload{SettlementID: settlementID}})
}

// UnlockSolverOutput reverses a Phase 1b reservation: either Phase 1b
// itself never committed (compensation), or a later phase failed or
// timed out after it did.
func (v VaultClient) UnlockSolverOutput(ctx context.Context, contract, settlementID string) error {
	return v.exec(ctx, contract, unlockOutputMsg{UnlockOutput: vaultSettlementPayload{SettlementID: settlementID}})
}
