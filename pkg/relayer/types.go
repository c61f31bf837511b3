// Package relayer implements a solver-integrated prioritized packet
// dispatcher: three strictly-ordered queues (Own, Paid, Altruistic),
// exponential-backoff retries with a hard attempt cap, and a dispatch
// cycle that sleeps whenever nothing is due rather than busy-polling.
package relayer

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PriorityClass is a packet's queue assignment.
type PriorityClass uint8

const (
	Own PriorityClass = iota
	Paid
	Altruistic
)

func (p PriorityClass) String() string {
	switch p {
	case Own:
		return "own"
	case Paid:
		return "paid"
	default:
		return "altruistic"
	}
}

// Packet is the unit of work the dispatcher relays: an IBC packet
// sequence pending relay, with its queue-specific priority fields and
// its own retry bookkeeping.
type Packet struct {
	Sequence      uint64
	SourceChannel string
	SettlementID  string

	Priority PriorityClass
	// Exposure and Deadline order Own packets (deadline ascending, then
	// exposure descending). FeeBps doesn't order anything by itself —
	// Paid is a single FIFO tier below Own.
	Exposure sdkmath.Int
	Deadline time.Time
	FeeBps   uint32

	Attempts    uint32
	LastAttempt time.Time
	NextRetryAt time.Time
}

// Config tunes the dispatcher's retry and polling behavior.
type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts uint32
	// PollInterval bounds how long the dispatcher sleeps when every
	// queue is empty or every due time is in the future.
	PollInterval time.Duration
}

// RetryDelay implements the dispatcher's backoff formula:
// delay(n) = min(base * 2^n, max_delay).
func (c Config) RetryDelay(attempts uint32) time.Duration {
	delay := c.BaseDelay
	for i := uint32(0); i < attempts; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
