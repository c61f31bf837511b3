package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

// EscrowLocker is the subset of x/escrow.Keeper the coordinator drives
// directly: locking the user's input in Phase 1a, and compensating
// with a refund if Phase 1b fails before the settlement keeper's own
// HandleIBCAck/HandleTimeout ever takes over the escrow.
type EscrowLocker interface {
	Lock(ctx context.Context, escrowID, intentID, owner, ownerChain, sourceChannel, denom string, amount sdkmath.Int, expiresAt, now time.Time, ibcTimeout, safetyBuffer time.Duration) error
	Refund(ctx context.Context, escrowID, caller string, now time.Time) error
}

// SettlementKeeper is the subset of x/settlement.Keeper the
// coordinator drives through its phases.
type SettlementKeeper interface {
	CreateSettlement(ctx context.Context, rec settlementtypes.Record) error
	Get(ctx context.Context, id string) (settlementtypes.Record, error)
	MarkUserLocked(ctx context.Context, id, caller string) error
	MarkSolverLocked(ctx context.Context, id, caller string) error
	ExecuteSettlement(ctx context.Context, id, caller string, now time.Time) error
	MarkFailed(ctx context.Context, id, caller, reason string) error
	HandleIBCAck(ctx context.Context, id, caller string, success bool) error
	HandleTimeout(ctx context.Context, id, caller string, now time.Time) error
}

// RegistryKeeper is the subset of x/registry.Keeper the coordinator
// uses to book and release a solver's open exposure against its bond.
type RegistryKeeper interface {
	ReserveExposure(ctx context.Context, solverID string, amount sdkmath.Int) error
	ReleaseExposure(ctx context.Context, solverID string, amount sdkmath.Int) error
}

// RelayerQueue is the dispatch hand-off surface: once a settlement's
// IBC transfer is dispatched, the coordinator registers the packet so
// pkg/relayer can prioritize relaying its ack.
type RelayerQueue interface {
	Register(ctx context.Context, settlementID string, deadline time.Time, ownExposure sdkmath.Int, paidFeeBps uint32)
}

// InventoryHook lets a solver operator's own inventory-management
// logic react to a settlement reaching a terminal status. It fires
// only on Completed/Failed, not on intermediate phase transitions,
// since those would expose partial state an operator cannot yet
// safely act on.
type InventoryHook interface {
	OnCompleted(ctx context.Context, settlementID string, solverID string, outputDenom string, outputAmount sdkmath.Int)
	OnFailed(ctx context.Context, settlementID string, solverID string, reason string)
}

type noopInventoryHook struct{}

func (noopInventoryHook) OnCompleted(context.Context, string, string, string, sdkmath.Int) {}
func (noopInventoryHook) OnFailed(context.Context, string, string, string)                 {}

// Coordinator drives a single settlement through the two-phase
// protocol: lock the user's input, lock the solver's output, dispatch
// the IBC transfer, and register with the relayer, resuming safely
// after a crash because every phase persists before it takes any
// externally observable action.
type Coordinator struct {
	logger log.Logger

	escrow     EscrowLocker
	settlement SettlementKeeper
	registry   RegistryKeeper
	vault      VaultClient
	relayer    RelayerQueue
	inventory  InventoryHook

	authority string // bech32 address this process signs admin-path settlement calls as

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per settlement_id, one actor per settlement_id
}

// New returns a Coordinator. relayer and inventory may be nil; a nil
// inventory hook is replaced with a no-op.
func New(
	logger log.Logger,
	escrow EscrowLocker,
	settlement SettlementKeeper,
	registry RegistryKeeper,
	vault VaultClient,
	relayer RelayerQueue,
	inventory InventoryHook,
	authority string,
) *Coordinator {
	if inventory == nil {
		inventory = noopInventoryHook{}
	}
	return &Coordinator{
		logger:     logger,
		escrow:     escrow,
		settlement: settlement,
		registry:   registry,
		vault:      vault,
		relayer:    relayer,
		inventory:  inventory,
		authority:  authority,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) lockFor(settlementID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[settlementID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[settlementID] = l
	}
	return l
}

// Settle runs the full Phase 1a/1b/2a/2a.1 protocol for an accepted
// intent/solution pair and returns the settlement's id once dispatched.
func (c *Coordinator) Settle(ctx context.Context, intent intenttypes.Intent, solution Solution, cfg Config, now time.Time) (string, error) {
	settlementID := fmt.Sprintf("%s-%s", intent.ID, solution.SolverID)
	lock := c.lockFor(settlementID)
	lock.Lock()
	defer lock.Unlock()

	ibcTimeout := time.Duration(cfg.IBCTimeoutSecs) * time.Second
	safetyBuffer := time.Duration(cfg.SafetyBufferSecs) * time.Second
	expiresAt := now.Add(ibcTimeout + safetyBuffer + cfg.EscrowSafetyMargin)

	rec := settlementtypes.Record{
		SettlementID:     settlementID,
		IntentID:         intent.ID,
		User:             intent.User,
		SolverOperator:   solution.SolverOperator,
		InputDenom:       intent.Input.Denom,
		InputAmount:      intent.Input.Amount,
		OutputDenom:      solution.OutputDenom,
		OutputAmount:     solution.OutputAmount,
		EscrowID:         settlementID,
		SolverVaultID:    solution.VaultContract,
		SourceChannel:    cfg.SourceChannel,
		IBCTimeoutSecs:   cfg.IBCTimeoutSecs,
		SafetyBufferSecs: cfg.SafetyBufferSecs,
		SolverBond:       solution.Bond,
		BaseSlashBps:     cfg.BaseSlashBps,
		CreatedAt:        now,
	}
	if err := c.settlement.CreateSettlement(ctx, rec); err != nil {
		return "", err
	}

	if err := c.reserveExposure(ctx, solution); err != nil {
		return "", err
	}

	switch cfg.Atomicity {
	case Atomic:
		if err := c.settleAtomic(ctx, settlementID, intent, solution, cfg, expiresAt, now, ibcTimeout, safetyBuffer); err != nil {
			return "", err
		}
	default:
		if err := c.settleSequential(ctx, settlementID, intent, solution, cfg, expiresAt, now, ibcTimeout, safetyBuffer); err != nil {
			return "", err
		}
	}

	if err := c.settlement.ExecuteSettlement(ctx, settlementID, c.authority, now); err != nil {
		return "", errorsWrap(ErrPhase2aFailed, err)
	}

	if c.relayer != nil {
		deadline := now.Add(ibcTimeout + safetyBuffer)
		c.relayer.Register(ctx, settlementID, deadline, solution.Bond, cfg.BaseSlashBps)
	}

	return settlementID, nil
}

// settleSequential locks the escrow, then locks the solver vault,
// compensating with an immediate refund if the second lock fails. The
// window between the two locks is the known griefing vector Atomic
// mode closes.
func (c *Coordinator) settleSequential(ctx context.Context, settlementID string, intent intenttypes.Intent, solution Solution, cfg Config, expiresAt, now time.Time, ibcTimeout, safetyBuffer time.Duration) error {
	if err := c.lockUserInput(ctx, settlementID, intent, cfg, expiresAt, now, ibcTimeout, safetyBuffer); err != nil {
		return errorsWrap(ErrPhase1aFailed, err)
	}
	if err := c.settlement.MarkUserLocked(ctx, settlementID, intent.User); err != nil {
		return errorsWrap(ErrPhase1aFailed, err)
	}

	if err := c.vault.LockSolverOutput(ctx, settlementID, solution); err != nil {
		if refundErr := c.escrow.Refund(ctx, settlementID, settlementCaller, now); refundErr != nil {
			return errorsWrap(ErrCompensationFailed, refundErr)
		}
		if failErr := c.settlement.MarkFailed(ctx, settlementID, c.authority, "phase_1b_lock_failed"); failErr != nil {
			return errorsWrap(ErrPhase1bFailed, failErr)
		}
		return errorsWrap(ErrPhase1bFailed, err)
	}
	return c.settlement.MarkSolverLocked(ctx, settlementID, solution.SolverOperator)
}

// settleAtomic locks both the escrow and the solver vault before
// persisting either UserLocked or SolverLocked, so no externally
// observable state ever shows the user locked without the solver also
// committed.
func (c *Coordinator) settleAtomic(ctx context.Context, settlementID string, intent intenttypes.Intent, solution Solution, cfg Config, expiresAt, now time.Time, ibcTimeout, safetyBuffer time.Duration) error {
	if err := c.lockUserInput(ctx, settlementID, intent, cfg, expiresAt, now, ibcTimeout, safetyBuffer); err != nil {
		return errorsWrap(ErrPhase1aFailed, err)
	}

	if err := c.vault.LockSolverOutput(ctx, settlementID, solution); err != nil {
		if refundErr := c.escrow.Refund(ctx, settlementID, settlementCaller, now); refundErr != nil {
			return errorsWrap(ErrCompensationFailed, refundErr)
		}
		return errorsWrap(ErrPhase1bFailed, err)
	}

	if err := c.settlement.MarkUserLocked(ctx, settlementID, intent.User); err != nil {
		return errorsWrap(ErrPhase1aFailed, err)
	}
	return c.settlement.MarkSolverLocked(ctx, settlementID, solution.SolverOperator)
}

func (c *Coordinator) lockUserInput(ctx context.Context, settlementID string, intent intenttypes.Intent, cfg Config, expiresAt, now time.Time, ibcTimeout, safetyBuffer time.Duration) error {
	return c.escrow.Lock(ctx, settlementID, intent.ID, intent.User, intentOwnerChain(intent), cfg.InputRefundChannel, intent.Input.Denom, intent.Input.Amount, expiresAt, now, ibcTimeout, safetyBuffer)
}

func (c *Coordinator) reserveExposure(ctx context.Context, solution Solution) error {
	if solution.SolverID == "" {
		return nil
	}
	return c.registry.ReserveExposure(ctx, solution.SolverID, solution.OutputAmount)
}

// HandleAck drives an ack to completion: the settlement's own
// HandleIBCAck releases or refunds the escrow, after which the
// coordinator settles the solver vault side and reports the terminal
// status to the inventory hook.
func (c *Coordinator) HandleAck(ctx context.Context, settlementID string, success bool, now time.Time) error {
	lock := c.lockFor(settlementID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := c.settlement.Get(ctx, settlementID)
	if err != nil {
		return err
	}

	if err := c.settlement.HandleIBCAck(ctx, settlementID, c.authority, success); err != nil {
		return err
	}

	c.registry.ReleaseExposure(ctx, rec.SolverOperator, rec.OutputAmount) //nolint:errcheck // best-effort bookkeeping, never blocks settlement finality

	if success {
		if err := c.vault.ReleaseSolverOutput(ctx, rec.SolverVaultID, settlementID); err != nil {
			c.logger.Error("vault release failed after settlement completed", "settlement_id", settlementID, "err", err)
		}
		c.inventory.OnCompleted(ctx, settlementID, rec.SolverOperator, rec.OutputDenom, rec.OutputAmount)
		return nil
	}

	if err := c.vault.UnlockSolverOutput(ctx, rec.SolverVaultID, settlementID); err != nil {
		c.logger.Error("vault unlock failed after settlement ack failure", "settlement_id", settlementID, "err", err)
	}
	c.inventory.OnFailed(ctx, settlementID, rec.SolverOperator, "ack_failure")
	return nil
}

// HandleTimeout handles a settlement past its ack/timeout deadline:
// the settlement's own HandleTimeout refunds the escrow and slashes
// the solver, after which the coordinator unwinds the vault
// reservation and reports failure to the inventory hook.
func (c *Coordinator) HandleTimeout(ctx context.Context, settlementID string, now time.Time) error {
	lock := c.lockFor(settlementID)
	lock.Lock()
	defer lock.Unlock()
	return c.handleTimeoutLocked(ctx, settlementID, now)
}

// handleTimeoutLocked is HandleTimeout's body, callable from Resume
// which already holds settlementID's lock.
func (c *Coordinator) handleTimeoutLocked(ctx context.Context, settlementID string, now time.Time) error {
	rec, err := c.settlement.Get(ctx, settlementID)
	if err != nil {
		return err
	}

	if err := c.settlement.HandleTimeout(ctx, settlementID, c.authority, now); err != nil {
		return err
	}

	c.registry.ReleaseExposure(ctx, rec.SolverOperator, rec.OutputAmount) //nolint:errcheck // best-effort bookkeeping, never blocks settlement finality

	if err := c.vault.UnlockSolverOutput(ctx, rec.SolverVaultID, settlementID); err != nil {
		c.logger.Error("vault unlock failed after settlement timeout", "settlement_id", settlementID, "err", err)
	}
	c.inventory.OnFailed(ctx, settlementID, rec.SolverOperator, "timeout")
	return nil
}

// Resume re-enters a non-terminal settlement at the phase its
// persisted status implies, for pkg/recovery's crash-restart sweep.
// It only acts on phases recoverable from the on-chain record alone:
// SolverLocked re-dispatches the IBC transfer, and a past-deadline
// Executing settlement is driven to handle_timeout; an Executing
// settlement still within its deadline is simply re-registered with
// the relayer so it keeps awaiting ack. Pending and UserLocked are
// left untouched here — resuming those phases needs the original
// Solution/Config a crashed process no longer has in hand unless the
// caller keeps its own durable queue of in-flight Settle calls, which
// is outside this package's scope.
func (c *Coordinator) Resume(ctx context.Context, settlementID string, now time.Time) error {
	lock := c.lockFor(settlementID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := c.settlement.Get(ctx, settlementID)
	if err != nil {
		return err
	}

	switch rec.Status {
	case settlementtypes.SolverLocked:
		return c.settlement.ExecuteSettlement(ctx, settlementID, c.authority, now)
	case settlementtypes.Executing:
		if now.Before(rec.Deadline) {
			if c.relayer != nil {
				c.relayer.Register(ctx, settlementID, rec.Deadline, rec.SolverBond, 0)
			}
			return nil
		}
		return c.handleTimeoutLocked(ctx, settlementID, now)
	default:
		return nil
	}
}

func errorsWrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, cause)
}
