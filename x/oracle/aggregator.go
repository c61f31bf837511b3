package oracle

import (
	"context"
	"sort"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

const ModuleName = "oracle"

var (
	ErrQuorumUnavailable = errorsmod.Register(ModuleName, 2, "could not obtain a price quorum")
	ErrNoCachedPrice     = errorsmod.Register(ModuleName, 3, "no cached price within ttl")
)

// Aggregator combines independent Sources into one Price: the result's
// value is the median of the sources that responded, and confidence
// is derived from their dispersion.
type Aggregator struct {
	sources    []Source
	minSources int

	mu    sync.Mutex
	cache map[string]Price
}

// NewAggregator returns an aggregator requiring at least minSources
// independent prices to form a quorum.
func NewAggregator(sources []Source, minSources int) *Aggregator {
	return &Aggregator{
		sources:    sources,
		minSources: minSources,
		cache:      make(map[string]Price),
	}
}

// Get fetches a price for pair, honoring req's policy on quorum
// failure: Required fails outright, Optional falls back, Cached
// accepts a recent-enough prior result.
func (a *Aggregator) Get(ctx context.Context, pair string, req Requirement) (Price, error) {
	prices := a.fetchAll(ctx, pair)

	if len(prices) >= a.minSources && a.minSources > 0 {
		agg := aggregate(pair, prices)
		a.mu.Lock()
		a.cache[pair] = agg
		a.mu.Unlock()
		return agg, nil
	}

	switch req.Kind {
	case Optional:
		if req.Fallback != nil {
			return *req.Fallback, nil
		}
		return Price{}, ErrQuorumUnavailable
	case Cached:
		a.mu.Lock()
		cached, ok := a.cache[pair]
		a.mu.Unlock()
		if !ok {
			return Price{}, ErrNoCachedPrice
		}
		if time.Since(cached.Timestamp) > req.TTL {
			return Price{}, ErrNoCachedPrice
		}
		return cached, nil
	default: // Required
		return Price{}, ErrQuorumUnavailable
	}
}

func (a *Aggregator) fetchAll(ctx context.Context, pair string) []Price {
	results := make(chan *Price, len(a.sources))
	var wg sync.WaitGroup
	for _, src := range a.sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := src.FetchPrice(ctx, pair)
			if err != nil {
				results <- nil
				return
			}
			results <- &p
		}()
	}
	wg.Wait()
	close(results)

	prices := make([]Price, 0, len(a.sources))
	for p := range results {
		if p != nil {
			prices = append(prices, *p)
		}
	}
	return prices
}

// aggregate computes the median value and a dispersion-derived
// confidence over a quorum of prices.
func aggregate(pair string, prices []Price) Price {
	values := make([]sdkmath.LegacyDec, len(prices))
	latest := prices[0].Timestamp
	for i, p := range prices {
		values[i] = p.Value
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
	}

	median := medianDec(values)
	confidence := confidenceFromDispersion(values, median)

	return Price{
		Value:      median,
		Confidence: confidence,
		Timestamp:  latest,
		Source:     "aggregated:" + pair,
	}
}

func medianDec(values []sdkmath.LegacyDec) sdkmath.LegacyDec {
	sorted := make([]sdkmath.LegacyDec, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LT(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).QuoInt64(2)
}

// confidenceFromDispersion turns the spread of independent quotes into
// a 0..1 confidence score: tightly clustered sources yield confidence
// near 1, wide disagreement pulls it toward 0.
func confidenceFromDispersion(values []sdkmath.LegacyDec, median sdkmath.LegacyDec) sdkmath.LegacyDec {
	if median.IsZero() {
		return sdkmath.LegacyZeroDec()
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v.LT(min) {
			min = v
		}
		if v.GT(max) {
			max = v
		}
	}
	spread := max.Sub(min)
	relative := spread.Quo(median.Abs())
	confidence := sdkmath.LegacyOneDec().Sub(relative)
	if confidence.IsNegative() {
		return sdkmath.LegacyZeroDec()
	}
	if confidence.GT(sdkmath.LegacyOneDec()) {
		return sdkmath.LegacyOneDec()
	}
	return confidence
}
