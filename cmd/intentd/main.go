// Command intentd wires the off-chain settlement orchestrator
// together as one long-running operational process: the two-phase
// coordinator, the prioritized relayer dispatch loop, and the
// crash-restart recovery sweep, all driven against a single
// cosmossdk.io/collections-backed keeper store this process owns
// outright. It deliberately does not bootstrap a consensus chain node
// (no module manager, no ABCI, no genesis) — the settlement/escrow/
// registry tables it keeps are this process's own bookkeeping, and
// the bank/IBC-transfer/CosmWasm legs of a settlement are dispatched
// to a remote chain node over gRPC rather than through in-process
// module keepers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tokenize-x/intent-swap-core/pkg/appstore"
	"github.com/tokenize-x/intent-swap-core/pkg/coordinator"
	"github.com/tokenize-x/intent-swap-core/pkg/recovery"
	"github.com/tokenize-x/intent-swap-core/pkg/relayer"
	"github.com/tokenize-x/intent-swap-core/pkg/signer"
	escrowkeeper "github.com/tokenize-x/intent-swap-core/x/escrow/keeper"
	registrykeeper "github.com/tokenize-x/intent-swap-core/x/registry/keeper"
	registrytypes "github.com/tokenize-x/intent-swap-core/x/registry/types"
	settlementkeeper "github.com/tokenize-x/intent-swap-core/x/settlement/keeper"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "intentd",
		Short: "Runs the intent-swap settlement coordinator, relayer, and recovery sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	if err := bindFlags(cmd, v); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg Config) error {
	logger := log.NewLogger(os.Stderr)

	store, err := appstore.Open(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("open keeper store: %w", err)
	}

	identity, err := signer.FromMnemonic(cfg.Chain.Mnemonic, cfg.Chain.KeyName)
	if err != nil {
		return fmt.Errorf("load signing identity: %w", err)
	}

	bc, err := newTxBroadcaster(cfg.Chain, identity)
	if err != nil {
		return fmt.Errorf("build chain broadcaster: %w", err)
	}

	bankAdapter := bankBroadcastKeeper{bc: bc}
	transferAdapter := transferBroadcastKeeper{bc: bc}
	wasmAdapter := wasmBroadcastExecutor{bc: bc}

	escrowKpr := escrowkeeper.NewKeeper(store.KVStoreService(), cfg.Chain.ChainID, bankAdapter, transferAdapter)
	registryKpr := registrykeeper.NewKeeper(store.KVStoreService(), cfg.Authority)

	minBondRatio, err := sdkmath.LegacyNewDecFromStr(cfg.Registry.MinBondRatio)
	if err != nil {
		return fmt.Errorf("parse registry.min_bond_ratio: %w", err)
	}
	minSlash, ok := sdkmath.NewIntFromString(cfg.Settle.MinSlash)
	if !ok {
		return fmt.Errorf("parse settlement.min_slash: %q is not an integer", cfg.Settle.MinSlash)
	}

	initCtx := store.Context(time.Now())
	if err := registryKpr.SetParams(initCtx, registrytypes.Params{
		BaseTimeout:  cfg.Registry.BaseTimeout,
		MinBondRatio: minBondRatio,
	}); err != nil {
		return fmt.Errorf("seed registry params: %w", err)
	}
	store.Commit()

	settlementKpr := settlementkeeper.NewKeeper(
		store.KVStoreService(),
		cfg.Authority,
		transferAdapter,
		settlementEscrowAdapter{escrow: escrowKpr},
		registryKpr,
		settlementtypes.Params{MinSlash: minSlash},
	)

	relayerCfg := relayer.Config{
		BaseDelay:    cfg.Relayer.BaseDelay,
		MaxDelay:     cfg.Relayer.MaxDelay,
		MaxAttempts:  cfg.Relayer.MaxAttempts,
		PollInterval: cfg.Relayer.PollInterval,
	}
	dispatcher := relayer.New(logger, relayerCfg, relayFunc(logger, settlementKpr), func(p relayer.Packet) {
		logger.Error("relayer gave up on packet", "settlement_id", p.SettlementID, "sequence", p.Sequence)
		if err := settlementKpr.MarkRelayerGivenUp(store.Context(time.Now()), p.SettlementID); err != nil {
			logger.Error("failed to record relayer give-up", "settlement_id", p.SettlementID, "err", err)
			return
		}
		store.Commit()
	})

	vault := coordinator.NewVaultClient(wasmAdapter, identity.Address.String())
	coord := coordinator.New(logger, escrowKpr, settlementKpr, registryKpr, vault, dispatcher, nil, cfg.Authority)

	sweep := recovery.New(logger, settlementKpr, coord)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("running startup recovery sweep")
	if results, err := sweep.Run(store.Context(time.Now()), time.Now()); err != nil {
		logger.Error("startup recovery sweep failed", "err", err)
	} else {
		store.Commit()
		for _, r := range results {
			if r.Err != nil {
				logger.Error("recovery resume failed", "settlement_id", r.SettlementID, "err", r.Err)
			}
		}
	}

	dispatchTicker := time.NewTicker(relayerCfg.PollInterval)
	defer dispatchTicker.Stop()
	recoveryTicker := time.NewTicker(cfg.Recovery.SweepInterval)
	defer recoveryTicker.Stop()

	logger.Info("intentd running", "authority", cfg.Authority, "chain_id", cfg.Chain.ChainID)
	for {
		select {
		case <-runCtx.Done():
			logger.Info("shutting down")
			return nil
		case now := <-dispatchTicker.C:
			if dispatcher.DispatchOnce(store.Context(now), now) {
				store.Commit()
			}
		case now := <-recoveryTicker.C:
			results, err := sweep.Run(store.Context(now), now)
			if err != nil {
				logger.Error("recovery sweep failed", "err", err)
				continue
			}
			store.Commit()
			for _, r := range results {
				if r.Err != nil {
					logger.Error("recovery resume failed", "settlement_id", r.SettlementID, "err", r.Err)
				}
			}
		}
	}
}

// relayFunc resolves a packet's settlement record for its channel and
// sequence and hands it off for on-chain relay. Constructing the
// Merkle proof a genuine MsgRecvPacket/MsgAcknowledgement submission
// needs is the job of a dedicated IBC relayer process (Hermes or
// go-relayer class infrastructure watching both chains' light
// clients); that is out of scope here. This hook's job is only to
// decide, via pkg/relayer's priority queues, which packet such a
// relayer should be pointed at next — so it logs the resolved
// channel/sequence and reports success, ready for a real relayer
// client to be substituted in behind the same RelayFunc signature.
func relayFunc(logger log.Logger, settlements interface {
	Get(ctx context.Context, id string) (settlementtypes.Record, error)
}) relayer.RelayFunc {
	return func(ctx context.Context, p relayer.Packet) error {
		rec, err := settlements.Get(ctx, p.SettlementID)
		if err != nil {
			return fmt.Errorf("resolve settlement %s: %w", p.SettlementID, err)
		}
		logger.Info("relaying settlement packet",
			"settlement_id", p.SettlementID,
			"source_channel", rec.SourceChannel,
			"sequence", rec.PacketSequence,
			"priority", p.Priority.String(),
		)
		return nil
	}
}
