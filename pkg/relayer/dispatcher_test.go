package relayer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/pkg/relayer"
)

func testConfig() relayer.Config {
	return relayer.Config{
		BaseDelay:    time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  3,
		PollInterval: 10 * time.Millisecond,
	}
}

func TestRetryDelayExponentialWithCap(t *testing.T) {
	cfg := testConfig()
	require.Equal(t, time.Second, cfg.RetryDelay(0))
	require.Equal(t, 2*time.Second, cfg.RetryDelay(1))
	require.Equal(t, 4*time.Second, cfg.RetryDelay(2))
	require.Equal(t, 60*time.Second, cfg.RetryDelay(10))
}

func TestOwnQueueServicedBeforePaidAndAltruistic(t *testing.T) {
	var relayed []string
	relay := func(_ context.Context, p relayer.Packet) error {
		relayed = append(relayed, p.SettlementID)
		return nil
	}
	d := relayer.New(log.NewNopLogger(), testConfig(), relay, nil)

	d.Enqueue(relayer.Packet{SettlementID: "altruistic-1", Priority: relayer.Altruistic})
	d.Enqueue(relayer.Packet{SettlementID: "paid-1", Priority: relayer.Paid})
	d.Enqueue(relayer.Packet{SettlementID: "own-1", Priority: relayer.Own, Exposure: sdkmath.NewInt(100), Deadline: time.Now()})

	ctx := context.Background()
	now := time.Now()
	require.True(t, d.DispatchOnce(ctx, now))
	require.True(t, d.DispatchOnce(ctx, now))
	require.True(t, d.DispatchOnce(ctx, now))
	require.Equal(t, []string{"own-1", "paid-1", "altruistic-1"}, relayed)
}

func TestOwnTierOrdersByDeadlineThenExposure(t *testing.T) {
	var relayed []string
	relay := func(_ context.Context, p relayer.Packet) error {
		relayed = append(relayed, p.SettlementID)
		return nil
	}
	d := relayer.New(log.NewNopLogger(), testConfig(), relay, nil)

	now := time.Now()
	d.Enqueue(relayer.Packet{SettlementID: "later-deadline", Priority: relayer.Own, Exposure: sdkmath.NewInt(500), Deadline: now.Add(time.Hour)})
	d.Enqueue(relayer.Packet{SettlementID: "earlier-deadline-smaller", Priority: relayer.Own, Exposure: sdkmath.NewInt(100), Deadline: now})
	d.Enqueue(relayer.Packet{SettlementID: "earlier-deadline-bigger", Priority: relayer.Own, Exposure: sdkmath.NewInt(900), Deadline: now})

	ctx := context.Background()
	require.True(t, d.DispatchOnce(ctx, now.Add(2*time.Hour)))
	require.True(t, d.DispatchOnce(ctx, now.Add(2*time.Hour)))
	require.True(t, d.DispatchOnce(ctx, now.Add(2*time.Hour)))
	require.Equal(t, []string{"earlier-deadline-bigger", "earlier-deadline-smaller", "later-deadline"}, relayed)
}

func TestFailedRelaySchedulesBackoffRetry(t *testing.T) {
	attempts := 0
	relay := func(context.Context, relayer.Packet) error {
		attempts++
		return errors.New("transient relay failure")
	}
	d := relayer.New(log.NewNopLogger(), testConfig(), relay, nil)
	now := time.Now()
	d.Enqueue(relayer.Packet{SettlementID: "s1", Priority: relayer.Own, Exposure: sdkmath.NewInt(1), Deadline: now})

	ctx := context.Background()
	require.True(t, d.DispatchOnce(ctx, now))
	require.Equal(t, 1, attempts)

	// Retry not due yet: dispatch finds nothing.
	require.False(t, d.DispatchOnce(ctx, now.Add(500*time.Millisecond)))
	require.Equal(t, 1, attempts)

	// Past the scheduled backoff: dispatch retries.
	require.True(t, d.DispatchOnce(ctx, now.Add(2*time.Second)))
	require.Equal(t, 2, attempts)
}

func TestGivenUpAfterMaxAttempts(t *testing.T) {
	relay := func(context.Context, relayer.Packet) error {
		return errors.New("persistent relay failure")
	}
	var givenUp []string
	cfg := testConfig()
	cfg.MaxAttempts = 2
	d := relayer.New(log.NewNopLogger(), cfg, relay, func(p relayer.Packet) {
		givenUp = append(givenUp, p.SettlementID)
	})

	now := time.Now()
	d.Enqueue(relayer.Packet{SettlementID: "doomed", Priority: relayer.Own, Exposure: sdkmath.NewInt(1), Deadline: now})

	ctx := context.Background()
	require.True(t, d.DispatchOnce(ctx, now))
	require.True(t, d.DispatchOnce(ctx, now.Add(time.Minute)))
	require.Equal(t, []string{"doomed"}, givenUp)

	// The packet is gone: a further dispatch finds nothing due.
	require.False(t, d.DispatchOnce(ctx, now.Add(time.Hour)))
}

func TestRegisterSatisfiesCoordinatorRelayerQueueShape(t *testing.T) {
	d := relayer.New(log.NewNopLogger(), testConfig(), func(context.Context, relayer.Packet) error { return nil }, nil)
	d.Register(context.Background(), "s1", time.Now().Add(time.Minute), sdkmath.NewInt(42), 0)
	require.True(t, d.DispatchOnce(context.Background(), time.Now().Add(2*time.Minute)))
}
