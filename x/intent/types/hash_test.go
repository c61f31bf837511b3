package types_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/x/intent/types"
)

func baseIntent() types.Intent {
	hops := uint32(2)
	feeBps := uint32(30)
	bridgeSecs := uint64(600)
	now := time.Unix(1_800_000_000, 0).UTC()

	return types.Intent{
		Version:   1,
		Nonce:     7,
		User:      "cosmos1useraddressxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		PublicKey: []byte{0x02, 0x01, 0x02, 0x03},
		Signature: []byte{0xAA, 0xBB},
		Input: types.CoinAmount{
			Chain:  "chain-a",
			Denom:  "uatom",
			Amount: sdkmath.NewInt(100_000),
		},
		Output: types.OutputSpec{
			Chain:      "chain-b",
			Denom:      "uosmo",
			MinAmount:  sdkmath.NewInt(95_000),
			LimitPrice: sdkmath.LegacyMustNewDecFromStr("1.05"),
			Recipient:  "cosmos1recipientxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
		},
		FillConfig: types.FillConfig{
			AllowPartial:        true,
			MinFillAmount:       sdkmath.NewInt(1000),
			MinFillPct:          sdkmath.LegacyMustNewDecFromStr("0.5"),
			AggregationWindowMs: 2500,
			Strategy: types.FillStrategy{
				Kind:       types.StrategyMinimumThenEager,
				MinimumPct: sdkmath.LegacyMustNewDecFromStr("0.6"),
			},
		},
		Constraints: types.Constraints{
			Deadline:            now.Add(time.Hour),
			MaxHops:             &hops,
			ExcludedVenues:      []string{"venue-b", "venue-a"},
			MaxSolverFeeBps:     &feeBps,
			AllowCrossEcosystem: true,
			MaxBridgeTimeSecs:   &bridgeSecs,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(2 * time.Hour),
	}
}

// u32ptr / u64ptr make it easy to flip a present-optional to a
// different present value in the mutators below.
func u32ptr(v uint32) *uint32 { return &v }
func u64ptr(v uint64) *uint64 { return &v }

// TestCanonicalHashCoversEveryField checks the signing-hash invariant:
// for every field named in it, two intents differing only in that
// field must hash differently.
func TestCanonicalHashCoversEveryField(t *testing.T) {
	mutators := map[string]func(*types.Intent){
		"version":                func(i *types.Intent) { i.Version++ },
		"nonce":                  func(i *types.Intent) { i.Nonce++ },
		"user":                   func(i *types.Intent) { i.User += "x" },
		"input.chain":            func(i *types.Intent) { i.Input.Chain = "chain-z" },
		"input.denom":            func(i *types.Intent) { i.Input.Denom = "udiff" },
		"input.amount":           func(i *types.Intent) { i.Input.Amount = i.Input.Amount.AddRaw(1) },
		"output.chain":           func(i *types.Intent) { i.Output.Chain = "chain-z" },
		"output.denom":           func(i *types.Intent) { i.Output.Denom = "udiff" },
		"output.min_amount":      func(i *types.Intent) { i.Output.MinAmount = i.Output.MinAmount.AddRaw(1) },
		"output.limit_price":     func(i *types.Intent) { i.Output.LimitPrice = i.Output.LimitPrice.Add(sdkmath.LegacyMustNewDecFromStr("0.01")) },
		"output.recipient":       func(i *types.Intent) { i.Output.Recipient += "x" },
		"deadline":               func(i *types.Intent) { i.Constraints.Deadline = i.Constraints.Deadline.Add(time.Second) },
		"max_hops nil vs set":    func(i *types.Intent) { i.Constraints.MaxHops = nil },
		"max_hops value":         func(i *types.Intent) { i.Constraints.MaxHops = u32ptr(*i.Constraints.MaxHops + 1) },
		"excluded_venues":        func(i *types.Intent) { i.Constraints.ExcludedVenues = append(append([]string(nil), i.Constraints.ExcludedVenues...), "venue-c") },
		"max_solver_fee nil":     func(i *types.Intent) { i.Constraints.MaxSolverFeeBps = nil },
		"max_solver_fee value":   func(i *types.Intent) { i.Constraints.MaxSolverFeeBps = u32ptr(*i.Constraints.MaxSolverFeeBps + 1) },
		"allow_cross_ecosystem":  func(i *types.Intent) { i.Constraints.AllowCrossEcosystem = !i.Constraints.AllowCrossEcosystem },
		"max_bridge_time nil":    func(i *types.Intent) { i.Constraints.MaxBridgeTimeSecs = nil },
		"max_bridge_time value":  func(i *types.Intent) { i.Constraints.MaxBridgeTimeSecs = u64ptr(*i.Constraints.MaxBridgeTimeSecs + 1) },
		"allow_partial":          func(i *types.Intent) { i.FillConfig.AllowPartial = !i.FillConfig.AllowPartial },
		"min_fill_amount":        func(i *types.Intent) { i.FillConfig.MinFillAmount = i.FillConfig.MinFillAmount.AddRaw(1) },
		"min_fill_pct":           func(i *types.Intent) { i.FillConfig.MinFillPct = i.FillConfig.MinFillPct.Add(sdkmath.LegacyMustNewDecFromStr("0.01")) },
		"aggregation_window_ms":  func(i *types.Intent) { i.FillConfig.AggregationWindowMs++ },
		"strategy kind":          func(i *types.Intent) { i.FillConfig.Strategy.Kind = types.StrategyEager },
		"strategy nested pct":    func(i *types.Intent) { i.FillConfig.Strategy.MinimumPct = i.FillConfig.Strategy.MinimumPct.Add(sdkmath.LegacyMustNewDecFromStr("0.01")) },
	}

	base := baseIntent()
	baseHash := types.CanonicalHash(base)

	for name, mutate := range mutators {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			mutated := baseIntent()
			mutate(&mutated)
			require.NotEqual(t, baseHash, types.CanonicalHash(mutated), "field %s did not change the hash", name)
		})
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	base := baseIntent()
	require.Equal(t, types.CanonicalHash(base), types.CanonicalHash(base))
}

func TestCanonicalHashSortsExcludedVenuesBeforeHashing(t *testing.T) {
	a := baseIntent()
	a.Constraints.ExcludedVenues = []string{"venue-a", "venue-b"}
	b := baseIntent()
	b.Constraints.ExcludedVenues = []string{"venue-b", "venue-a"}
	require.Equal(t, types.CanonicalHash(a), types.CanonicalHash(b))
}
