// Package keeper implements the two-sided, price-time-priority order
// book. The book is a small hot in-memory structure, serialized by a
// single mutex since fine-grained locking is neither necessary nor
// beneficial at this scale; it is not persisted through
// cosmossdk.io/collections like the on-chain settlement and
// escrow keepers are.
package keeper

import (
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/samber/lo"

	deterministicmap "github.com/tokenize-x/intent-swap-core/pkg/deterministic-map"
	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
	"github.com/tokenize-x/intent-swap-core/x/book/types"
)

// priceLevel is the FIFO queue of resting entries at one limit price.
type priceLevel struct {
	Price sdkmath.LegacyDec
	Queue []*types.BookEntry
}

// OrderBook is the order book for a single trading pair.
type OrderBook struct {
	mu    sync.Mutex
	pair  string
	bids  *deterministicmap.Map[string, *priceLevel]
	asks  *deterministicmap.Map[string, *priceLevel]
	index map[string]*types.BookEntry
	seq   uint64
}

// NewOrderBook returns an empty book for pair.
func NewOrderBook(pair string) *OrderBook {
	return &OrderBook{
		pair:  pair,
		bids:  deterministicmap.New[string, *priceLevel](),
		asks:  deterministicmap.New[string, *priceLevel](),
		index: make(map[string]*types.BookEntry),
	}
}

func (b *OrderBook) levelsFor(side intenttypes.Side) *deterministicmap.Map[string, *priceLevel] {
	if side == intenttypes.SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLevelsFor(side intenttypes.Side) *deterministicmap.Map[string, *priceLevel] {
	if side == intenttypes.SideBuy {
		return b.asks
	}
	return b.bids
}

// Insert places entry at the tail of its side's price level.
func (b *OrderBook) Insert(entry *types.BookEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insertLocked(entry)
}

func (b *OrderBook) insertLocked(entry *types.BookEntry) {
	b.seq++
	entry.Sequence = b.seq

	levels := b.levelsFor(entry.Side)
	key := priceKey(entry.LimitPrice)
	lvl, ok := levels.Get(key)
	if !ok {
		lvl = &priceLevel{Price: entry.LimitPrice}
		levels.Set(key, lvl)
	}
	lvl.Queue = append(lvl.Queue, entry)
	b.index[entry.IntentID] = entry
}

// Cancel removes entry if present and still partially unfilled.
func (b *OrderBook) Cancel(intentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.index[intentID]
	if !ok || !entry.RemainingAmount.IsPositive() {
		return false
	}

	levels := b.levelsFor(entry.Side)
	key := priceKey(entry.LimitPrice)
	lvl, ok := levels.Get(key)
	if !ok {
		return false
	}
	lvl.Queue = removeEntry(lvl.Queue, intentID)
	if len(lvl.Queue) == 0 {
		levels.Delete(key)
	}
	delete(b.index, intentID)
	return true
}

// Expire removes every entry whose ExpiresAt is at or before now and
// returns their intent ids.
func (b *OrderBook) Expire(now time.Time) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var expired []string
	for _, side := range []*deterministicmap.Map[string, *priceLevel]{b.bids, b.asks} {
		for _, key := range collectKeys(side) {
			lvl, ok := side.Get(key)
			if !ok {
				continue
			}
			kept := lo.Filter(lvl.Queue, func(e *types.BookEntry, _ int) bool {
				if e.ExpiresAt.After(now) {
					return true
				}
				expired = append(expired, e.IntentID)
				delete(b.index, e.IntentID)
				return false
			})
			if len(kept) == 0 {
				side.Delete(key)
			} else {
				lvl.Queue = kept
			}
		}
	}
	return expired
}

// candidateFill is a prospective match found while walking the book,
// not yet committed.
type candidateFill struct {
	maker  *types.BookEntry
	amount sdkmath.Int
}

// crosses reports whether a resting order at makerPrice crosses an
// incoming order of side at takerLimit: a buy at pb crosses a sell at
// ps iff pb >= ps.
func crosses(side intenttypes.Side, takerLimit, makerPrice sdkmath.LegacyDec) bool {
	if side == intenttypes.SideBuy {
		return makerPrice.LTE(takerLimit)
	}
	return makerPrice.GTE(takerLimit)
}

// walkOpposite finds, without mutating the book, the maker entries an
// incoming taker would match against, best-price-first then FIFO
// within a level, up to taker's remaining amount. Self-trade is
// prevented by skipping any maker entry owned by the taker's own user.
func (b *OrderBook) walkOpposite(taker *types.BookEntry) ([]candidateFill, sdkmath.Int) {
	levels := b.oppositeLevelsFor(taker.Side)
	descending := taker.Side == intenttypes.SideSell
	ordered := sortedLevels(levels, descending)

	var candidates []candidateFill
	total := sdkmath.ZeroInt()
	remaining := taker.RemainingAmount

	for _, lvl := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if !crosses(taker.Side, taker.LimitPrice, lvl.Price) {
			break // levels are best-first; nothing further can cross either
		}
		for _, maker := range lvl.Queue {
			if !remaining.IsPositive() {
				break
			}
			if maker.User == taker.User {
				continue
			}
			avail := maker.RemainingAmount
			if !avail.IsPositive() {
				continue
			}
			take := avail
			if take.GT(remaining) {
				take = remaining
			}
			candidates = append(candidates, candidateFill{maker: maker, amount: take})
			remaining = remaining.Sub(take)
			total = total.Add(take)
		}
	}
	return candidates, total
}

// MatchIncoming walks the opposite side of the book against taker and
// either fills it (fully or partially, per its fill_config), rests any
// unfilled remainder, or — for AllOrNothing / allow_partial=false
// orders that cannot be fully filled — does neither.
func (b *OrderBook) MatchIncoming(taker *types.BookEntry) types.MatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	original := taker.RemainingAmount
	candidates, total := b.walkOpposite(taker)

	killIfShort := !taker.FillConfig.AllowPartial || taker.FillConfig.Strategy.Kind == intenttypes.StrategyAllOrNothing
	if killIfShort && total.LT(original) {
		return types.MatchResult{Remaining: original, Inserted: false}
	}

	if taker.FillConfig.Strategy.Kind == intenttypes.StrategyMinimumThenEager {
		threshold := taker.FillConfig.Strategy.MinimumPct.MulInt(original).TruncateInt()
		if total.LT(threshold) {
			rest := cloneEntry(taker)
			b.insertLocked(rest)
			return types.MatchResult{Remaining: original, Inserted: true}
		}
	}

	fills := b.commitFills(candidates, taker.Side)

	filled := sdkmath.ZeroInt()
	for _, f := range fills {
		filled = filled.Add(f.Amount)
	}
	remaining := original.Sub(filled)

	inserted := false
	if remaining.IsPositive() {
		rest := cloneEntry(taker)
		rest.RemainingAmount = remaining
		b.insertLocked(rest)
		inserted = true
	}

	return types.MatchResult{Fills: fills, Remaining: remaining, Inserted: inserted}
}

// commitFills applies candidate fills to the book: maker remaining
// amounts are debited and fully-consumed makers are pruned from their
// price level.
func (b *OrderBook) commitFills(candidates []candidateFill, takerSide intenttypes.Side) []types.Fill {
	fills := make([]types.Fill, 0, len(candidates))
	for _, c := range candidates {
		c.maker.RemainingAmount = c.maker.RemainingAmount.Sub(c.amount)
		fills = append(fills, types.Fill{
			MakerIntentID: c.maker.IntentID,
			MakerUser:     c.maker.User,
			Amount:        c.amount,
			Price:         c.maker.LimitPrice,
		})
	}
	b.pruneEmpty(b.oppositeLevelsFor(takerSide))
	return fills
}

// pruneEmpty removes fully-filled entries (and now-empty levels) from
// levels and from the intent-id index.
func (b *OrderBook) pruneEmpty(levels *deterministicmap.Map[string, *priceLevel]) {
	for _, key := range collectKeys(levels) {
		lvl, ok := levels.Get(key)
		if !ok {
			continue
		}
		kept := lvl.Queue[:0:0]
		for _, e := range lvl.Queue {
			if e.RemainingAmount.IsZero() {
				delete(b.index, e.IntentID)
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			levels.Delete(key)
		} else {
			lvl.Queue = kept
		}
	}
}

func cloneEntry(e *types.BookEntry) *types.BookEntry {
	clone := *e
	clone.Sequence = 0
	return &clone
}

func removeEntry(queue []*types.BookEntry, intentID string) []*types.BookEntry {
	out := queue[:0:0]
	for _, e := range queue {
		if e.IntentID != intentID {
			out = append(out, e)
		}
	}
	return out
}

func collectKeys(m *deterministicmap.Map[string, *priceLevel]) []string {
	keys := make([]string, 0, m.Len())
	_ = m.Range(func(k string, _ *priceLevel) error {
		keys = append(keys, k)
		return nil
	})
	return keys
}

func sortedLevels(m *deterministicmap.Map[string, *priceLevel], descending bool) []*priceLevel {
	levels := m.Values()
	sorted := make([]*priceLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].Price.GT(sorted[j].Price)
		}
		return sorted[i].Price.LT(sorted[j].Price)
	})
	return sorted
}
