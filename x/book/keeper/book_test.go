package keeper_test

import (
	"strconv"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/x/book/keeper"
	"github.com/tokenize-x/intent-swap-core/x/book/types"
	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
)

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }

func eagerEntry(id, user string, side intenttypes.Side, amount string, price string, expires time.Time) *types.BookEntry {
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		panic(err)
	}
	amt := sdkmath.NewInt(n)
	return &types.BookEntry{
		IntentID:        id,
		User:            user,
		Side:            side,
		OriginalAmount:  amt,
		RemainingAmount: amt,
		LimitPrice:      dec(price),
		FillConfig:      intenttypes.FillConfig{AllowPartial: true, Strategy: intenttypes.FillStrategy{Kind: intenttypes.StrategyEager}},
		ExpiresAt:       expires,
		Timestamp:       time.Now(),
	}
}

// Scenario A: internal crossing. Buy 100@10.50 crosses sell 100@10.40
// at the resting (maker) price.
func TestMatchIncomingScenarioA(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")

	sell := eagerEntry("I2", "bob", intenttypes.SideSell, "100", "10.40", far)
	book.Insert(sell)

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far)
	result := book.MatchIncoming(buy)

	require.Len(t, result.Fills, 1)
	require.True(t, result.Fills[0].Amount.Equal(sdkmath.NewInt(100)))
	require.True(t, result.Fills[0].Price.Equal(dec("10.40")))
	require.True(t, result.Remaining.IsZero())
	require.False(t, result.Inserted)
}

// Scenario B: partial book fill, residual left resting.
func TestMatchIncomingScenarioBPartialResidualRests(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")

	sell := eagerEntry("I2", "bob", intenttypes.SideSell, "100", "10.40", far)
	sell.FillConfig.Strategy.Kind = intenttypes.StrategyEager
	book.Insert(sell)

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "200", "10.50", far)
	result := book.MatchIncoming(buy)

	require.Len(t, result.Fills, 1)
	require.True(t, result.Fills[0].Amount.Equal(sdkmath.NewInt(100)))
	require.True(t, result.Remaining.Equal(sdkmath.NewInt(100)))
	require.True(t, result.Inserted)
}

func TestMatchIncomingAllOrNothingKilledWhenShort(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I2", "bob", intenttypes.SideSell, "50", "10.40", far))

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far)
	buy.FillConfig.Strategy.Kind = intenttypes.StrategyAllOrNothing
	buy.FillConfig.AllowPartial = false

	result := book.MatchIncoming(buy)
	require.Empty(t, result.Fills)
	require.False(t, result.Inserted)
	require.True(t, result.Remaining.Equal(sdkmath.NewInt(100)))

	// The resting sell order must be untouched.
	require.True(t, book.Cancel("I2"))
}

func TestMatchIncomingMinimumThenEagerBelowThresholdRestsUnfilled(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I2", "bob", intenttypes.SideSell, "10", "10.40", far))

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far)
	buy.FillConfig.Strategy = intenttypes.FillStrategy{Kind: intenttypes.StrategyMinimumThenEager, MinimumPct: dec("0.5")}

	result := book.MatchIncoming(buy)
	require.Empty(t, result.Fills)
	require.True(t, result.Inserted)
	require.True(t, result.Remaining.Equal(sdkmath.NewInt(100)))
}

func TestMatchIncomingMinimumThenEagerAboveThresholdFillsGreedily(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I2", "bob", intenttypes.SideSell, "60", "10.40", far))

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far)
	buy.FillConfig.Strategy = intenttypes.FillStrategy{Kind: intenttypes.StrategyMinimumThenEager, MinimumPct: dec("0.5")}

	result := book.MatchIncoming(buy)
	require.Len(t, result.Fills, 1)
	require.True(t, result.Fills[0].Amount.Equal(sdkmath.NewInt(60)))
	require.True(t, result.Remaining.Equal(sdkmath.NewInt(40)))
	require.True(t, result.Inserted)
}

func TestMatchIncomingSelfTradeIsSkipped(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I2", "alice", intenttypes.SideSell, "100", "10.40", far))

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far)
	result := book.MatchIncoming(buy)

	require.Empty(t, result.Fills)
	require.True(t, result.Inserted)
}

func TestCancelRemovesRestingEntry(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", far))

	require.True(t, book.Cancel("I1"))
	require.False(t, book.Cancel("I1"))
}

func TestExpireRemovesExpiredEntries(t *testing.T) {
	now := time.Now()
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("I1", "alice", intenttypes.SideBuy, "100", "10.50", now.Add(-time.Second)))
	book.Insert(eagerEntry("I2", "bob", intenttypes.SideSell, "50", "10.40", now.Add(time.Hour)))

	expired := book.Expire(now)
	require.Equal(t, []string{"I1"}, expired)
	require.False(t, book.Cancel("I1"))
	require.True(t, book.Cancel("I2"))
}

func TestPriceTimePriorityFIFOAtSameLevel(t *testing.T) {
	far := time.Now().Add(time.Hour)
	book := keeper.NewOrderBook("A/B")
	book.Insert(eagerEntry("first", "bob", intenttypes.SideSell, "50", "10.40", far))
	book.Insert(eagerEntry("second", "carl", intenttypes.SideSell, "50", "10.40", far))

	buy := eagerEntry("I1", "alice", intenttypes.SideBuy, "60", "10.50", far)
	result := book.MatchIncoming(buy)

	require.Len(t, result.Fills, 2)
	require.Equal(t, "first", result.Fills[0].MakerIntentID)
	require.True(t, result.Fills[0].Amount.Equal(sdkmath.NewInt(50)))
	require.Equal(t, "second", result.Fills[1].MakerIntentID)
	require.True(t, result.Fills[1].Amount.Equal(sdkmath.NewInt(10)))
}
