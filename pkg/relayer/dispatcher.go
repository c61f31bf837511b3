package relayer

import (
	"context"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
)

// RelayFunc submits a single packet for on-chain relay, returning an
// error for any transient failure (the dispatcher treats every
// failure as transient and retries under backoff up to MaxAttempts).
type RelayFunc func(ctx context.Context, p Packet) error

// GivenUpHook is called once a packet exhausts its retry budget. The
// settlement behind it is expected to reach its own terminal state
// through the ordinary ack/timeout path, not through this hook.
type GivenUpHook func(p Packet)

// Dispatcher services the three priority tiers in strict order: while
// Own holds any due packet, neither Paid nor Altruistic are touched;
// Paid then takes precedence over Altruistic.
type Dispatcher struct {
	logger   log.Logger
	cfg      Config
	relay    RelayFunc
	onGiveUp GivenUpHook

	own        tierQueue
	paid       tierQueue
	altruistic tierQueue
}

// New returns a Dispatcher. onGiveUp may be nil.
func New(logger log.Logger, cfg Config, relay RelayFunc, onGiveUp GivenUpHook) *Dispatcher {
	if onGiveUp == nil {
		onGiveUp = func(Packet) {}
	}
	return &Dispatcher{logger: logger, cfg: cfg, relay: relay, onGiveUp: onGiveUp}
}

// Register satisfies pkg/coordinator.RelayerQueue: it enqueues
// settlementID's packet into the Own tier with the given exposure and
// deadline. The settlement's IBC sequence and source channel are
// resolved by RelayFunc itself from settlementID at relay time, since
// the coordinator does not yet have them in hand at registration.
func (d *Dispatcher) Register(_ context.Context, settlementID string, deadline time.Time, ownExposure sdkmath.Int, paidFeeBps uint32) {
	d.Enqueue(Packet{
		SettlementID: settlementID,
		Priority:     Own,
		Exposure:     ownExposure,
		Deadline:     deadline,
		FeeBps:       paidFeeBps,
	})
}

// Enqueue adds p to the tier p.Priority names. Own packets are kept
// sorted by (deadline ascending, exposure descending) after insertion.
func (d *Dispatcher) Enqueue(p Packet) {
	pkt := p
	switch p.Priority {
	case Own:
		d.own.push(&pkt)
		d.own.sortOwn()
	case Paid:
		d.paid.push(&pkt)
	default:
		d.altruistic.push(&pkt)
	}
}

// Run drives the dispatch loop until ctx is cancelled. Each cycle
// relays at most one due packet, taken from the highest-priority tier
// that has one; if no tier has a due packet it sleeps for
// cfg.PollInterval rather than spinning.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchOnce(ctx, time.Now())
		}
	}
}

// DispatchOnce relays at most one due packet and reports whether it
// found one. Run calls this every PollInterval; callers driving the
// dispatcher from an external scheduler instead of Run's ticker can
// call it directly.
func (d *Dispatcher) DispatchOnce(ctx context.Context, now time.Time) bool {
	for _, tier := range []*tierQueue{&d.own, &d.paid, &d.altruistic} {
		p := tier.peekDue(now)
		if p == nil {
			continue
		}
		d.attempt(ctx, tier, p, now)
		return true
	}
	return false
}

func (d *Dispatcher) attempt(ctx context.Context, tier *tierQueue, p *Packet, now time.Time) {
	p.LastAttempt = now
	err := d.relay(ctx, *p)
	if err == nil {
		tier.remove(p)
		return
	}

	p.Attempts++
	if p.Attempts >= d.cfg.MaxAttempts {
		tier.remove(p)
		d.logger.Error("relay attempts exhausted, giving up", "sequence", p.Sequence, "settlement_id", p.SettlementID, "err", err)
		d.onGiveUp(*p)
		return
	}

	p.NextRetryAt = now.Add(d.cfg.RetryDelay(p.Attempts))
	d.logger.Info("relay attempt failed, scheduled retry", "sequence", p.Sequence, "settlement_id", p.SettlementID, "attempts", p.Attempts, "next_retry_at", p.NextRetryAt, "err", err)
}
