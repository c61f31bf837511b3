package main

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is intentd's full runtime configuration: the chain endpoint
// it broadcasts settlement-side transactions against, the signing
// identity it broadcasts them as, the on-disk keeper store, and the
// policy knobs of the registry/settlement/relayer components it
// wires together. Maps directly to the YAML config file structure.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Authority string          `mapstructure:"authority"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Settle    SettleConfig    `mapstructure:"settlement"`
	Relayer   RelayerConfig   `mapstructure:"relayer"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
}

// ChainConfig is the remote chain this process broadcasts the
// bank/IBC-transfer/CosmWasm legs of settlement against, and the
// signing identity it broadcasts under.
type ChainConfig struct {
	ChainID      string `mapstructure:"chain_id"`
	GRPCEndpoint string `mapstructure:"grpc_endpoint"`
	Mnemonic     string `mapstructure:"mnemonic"`
	KeyName      string `mapstructure:"key_name"`
	GasLimit     uint64 `mapstructure:"gas_limit"`
	GasPrices    string `mapstructure:"gas_prices"`
}

// RegistryConfig seeds x/registry's policy params.
type RegistryConfig struct {
	BaseTimeout  time.Duration `mapstructure:"base_timeout"`
	MinBondRatio string        `mapstructure:"min_bond_ratio"`
}

// SettleConfig seeds x/settlement's policy params.
type SettleConfig struct {
	MinSlash string `mapstructure:"min_slash"`
}

// RelayerConfig tunes pkg/relayer's dispatch loop.
type RelayerConfig struct {
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxAttempts  uint32        `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RecoveryConfig tunes how often pkg/recovery sweeps for settlements
// orphaned by a prior crash.
type RecoveryConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func defaultConfig() Config {
	return Config{
		DataDir: "",
		Chain: ChainConfig{
			GasLimit:  300000,
			GasPrices: "0.025uintent",
			KeyName:   "intentd",
		},
		Registry: RegistryConfig{
			BaseTimeout:  90 * time.Second,
			MinBondRatio: "1.5",
		},
		Settle: SettleConfig{
			MinSlash: "1000",
		},
		Relayer: RelayerConfig{
			BaseDelay:    2 * time.Second,
			MaxDelay:     5 * time.Minute,
			MaxAttempts:  8,
			PollInterval: 500 * time.Millisecond,
		},
		Recovery: RecoveryConfig{
			SweepInterval: 30 * time.Second,
		},
	}
}

// bindFlags registers cmd's flags, defaulted from defaultConfig, and
// binds them into v so CLI flags, an INTENTD_-prefixed environment
// variable, or the config file (in that precedence order) all resolve
// into the same Config.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	def := defaultConfig()
	flags := cmd.Flags()

	// Flag names match their mapstructure tag path exactly (underscores,
	// not hyphens) since viper.BindPFlags registers the flag's literal
	// name as the viper key Unmarshal later looks up by tag.
	flags.String("data_dir", def.DataDir, "on-disk directory for the keeper store (empty uses an in-memory store)")
	flags.String("authority", "", "bech32 address authorized to drive admin-path settlement/registry calls")
	flags.String("chain.chain_id", "", "chain-id of the remote chain settlement transactions broadcast against")
	flags.String("chain.grpc_endpoint", "", "host:port of the remote chain's gRPC endpoint")
	flags.String("chain.mnemonic", "", "BIP-39 mnemonic for the signing identity this process broadcasts as")
	flags.String("chain.key_name", def.Chain.KeyName, "keyring name for the signing identity")
	flags.Uint64("chain.gas_limit", def.Chain.GasLimit, "fixed gas limit for broadcast transactions")
	flags.String("chain.gas_prices", def.Chain.GasPrices, "gas prices for broadcast transactions")
	flags.Duration("registry.base_timeout", def.Registry.BaseTimeout, "single-hop IBC timeout unit the timeout-scaling formula multiplies")
	flags.String("registry.min_bond_ratio", def.Registry.MinBondRatio, "minimum bond/exposure ratio a solver must maintain")
	flags.String("settlement.min_slash", def.Settle.MinSlash, "floor slash amount on a solver-fault settlement failure")
	flags.Duration("relayer.base_delay", def.Relayer.BaseDelay, "relayer retry backoff base delay")
	flags.Duration("relayer.max_delay", def.Relayer.MaxDelay, "relayer retry backoff cap")
	flags.Uint32("relayer.max_attempts", def.Relayer.MaxAttempts, "relayer attempts before giving up on a packet")
	flags.Duration("relayer.poll_interval", def.Relayer.PollInterval, "relayer dispatch loop idle poll interval")
	flags.Duration("recovery.sweep_interval", def.Recovery.SweepInterval, "interval between crash-recovery sweeps")

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("INTENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return nil
}

func loadConfig(v *viper.Viper, configFile string) (Config, error) {
	cfg := defaultConfig()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields wiring depends on directly; deeper
// semantic checks (e.g. a well-formed bech32 address) are left to the
// keeper constructors and the first failed broadcast.
func (c Config) Validate() error {
	if c.Authority == "" {
		return fmt.Errorf("authority is required")
	}
	if c.Chain.ChainID == "" {
		return fmt.Errorf("chain.chain_id is required")
	}
	if c.Chain.GRPCEndpoint == "" {
		return fmt.Errorf("chain.grpc_endpoint is required")
	}
	if c.Chain.Mnemonic == "" {
		return fmt.Errorf("chain.mnemonic is required")
	}
	if _, err := sdkmath.LegacyNewDecFromStr(c.Registry.MinBondRatio); err != nil {
		return fmt.Errorf("registry.min_bond_ratio: %w", err)
	}
	if _, ok := sdkmath.NewIntFromString(c.Settle.MinSlash); !ok {
		return fmt.Errorf("settlement.min_slash must be an integer")
	}
	return nil
}
