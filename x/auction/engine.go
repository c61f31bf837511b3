// Package auction implements the batch auction engine: internal
// crossing first, then residual routing to solver quotes, settling on
// a single uniform clearing price per run.
package auction

import (
	"context"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/samber/lo"

	"github.com/tokenize-x/intent-swap-core/x/auction/types"
	intenttypes "github.com/tokenize-x/intent-swap-core/x/intent/types"
	"github.com/tokenize-x/intent-swap-core/x/oracle"
	"github.com/tokenize-x/intent-swap-core/x/solver"
)

// OracleSource is the narrow price dependency the engine consults for
// its circuit breaker only — never to set a clearing price.
// *oracle.Aggregator satisfies this structurally.
type OracleSource interface {
	Get(ctx context.Context, pair string, req oracle.Requirement) (oracle.Price, error)
}

// ReputationSource resolves a solver's standing for tie-breaking
// quotes at equal price: volume-weighted reputation wins ties. A nil
// source treats every solver as reputation zero.
type ReputationSource interface {
	Reputation(ctx context.Context, solverID string) sdkmath.LegacyDec
}

// Params bounds and tunes a single auction run.
type Params struct {
	MaxQuotesPerAuction int
	ConfidenceThreshold sdkmath.LegacyDec
	CircuitDeviationPct sdkmath.LegacyDec
}

// Entry pairs an intent with its side for this pair. Side is not
// derivable from the intent alone: whether Input or Output is the
// pair's base asset depends on pair metadata (base/quote denom
// mapping) owned by the route registry, not by the auction engine.
type Entry struct {
	Intent intenttypes.Intent
	Side   intenttypes.Side
}

type residual struct {
	entry     Entry
	remaining sdkmath.Int
}

// quantityOf returns an entry's tradable quantity in the pair's base
// asset: a sell intent's Input is the base amount offered; a buy
// intent's desired base quantity is its Output.MinAmount.
func quantityOf(e Entry) sdkmath.Int {
	if e.Side == intenttypes.SideSell {
		return e.Intent.Input.Amount
	}
	return e.Intent.Output.MinAmount
}

// RunBatchAuction matches entries against each other and against
// solver quotes for a single pair, producing one uniform clearing
// price.
func RunBatchAuction(
	ctx context.Context,
	pair string,
	entries []Entry,
	quotes []solver.Quote,
	now time.Time,
	params Params,
	oracleSrc OracleSource,
	reputation ReputationSource,
) (types.AuctionResult, error) {
	if len(quotes) > params.MaxQuotesPerAuction {
		return types.AuctionResult{}, types.ErrTooManyQuotes
	}
	for _, e := range entries {
		if e.Intent.Expired(now) {
			return types.AuctionResult{}, types.ErrIntentExpired
		}
	}
	for _, q := range quotes {
		if q.Expired(now) {
			return types.AuctionResult{}, types.ErrIntentExpired
		}
	}

	buys := lo.Filter(entries, func(e Entry, _ int) bool { return e.Side == intenttypes.SideBuy })
	sells := lo.Filter(entries, func(e Entry, _ int) bool { return e.Side != intenttypes.SideBuy })

	fills, remainingByID := crossInternal(buys, sells)
	for _, f := range fills {
		if !limitRespectedByID(entries, f.BuyIntentID, f.Price) || !limitRespectedByID(entries, f.SellIntentID, f.Price) {
			return types.AuctionResult{}, types.ErrLimitPriceViolated
		}
	}

	residuals := append(residualsOf(buys, remainingByID), residualsOf(sells, remainingByID)...)

	quotesByIntent := make(map[string][]solver.Quote, len(quotes))
	for _, q := range quotes {
		quotesByIntent[q.IntentID] = append(quotesByIntent[q.IntentID], q)
	}

	var marginalSolverPrice sdkmath.LegacyDec
	haveMarginal := false

	for i := range residuals {
		r := &residuals[i]
		if !r.remaining.IsPositive() {
			continue
		}
		for _, q := range sortQuotes(ctx, quotesByIntent[r.entry.Intent.ID], r.entry.Side, reputation) {
			if !r.remaining.IsPositive() {
				break
			}
			if !limitRespected(r.entry, q.Fill.Price) {
				return types.AuctionResult{}, types.ErrLimitPriceViolated
			}
			amount := q.Fill.InputAmount
			if amount.GT(r.remaining) {
				amount = r.remaining
			}
			fill := types.AuctionFill{
				Source:   types.SolverQuote,
				SolverID: q.SolverID,
				Amount:   amount,
				Price:    q.Fill.Price,
			}
			if r.entry.Side == intenttypes.SideBuy {
				fill.BuyIntentID = r.entry.Intent.ID
			} else {
				fill.SellIntentID = r.entry.Intent.ID
			}
			fills = append(fills, fill)
			marginalSolverPrice = q.Fill.Price
			haveMarginal = true
			r.remaining = r.remaining.Sub(amount)
		}
	}

	if len(fills) == 0 {
		return types.AuctionResult{}, types.ErrNoViableFills
	}

	// Uniform clearing price (§4.3 step 4): the marginal solver price
	// if any solver fill occurred, otherwise the volume-weighted
	// midpoint across every internal fill — never just the last
	// internal match's own midpoint, which would ignore every
	// internal pair but the final one.
	var clearing sdkmath.LegacyDec
	if haveMarginal {
		clearing = marginalSolverPrice
	} else {
		clearing = volumeWeightedMidpoint(fills)
	}

	if err := checkCircuitBreaker(ctx, pair, clearing, params, oracleSrc); err != nil {
		return types.AuctionResult{}, err
	}

	return types.AuctionResult{Fills: fills, ClearingPrice: clearing}, nil
}

// crossInternal greedily pairs the best-priced buy against the
// best-priced sell while they cross, trading at their midpoint.
func crossInternal(buys, sells []Entry) ([]types.AuctionFill, map[string]sdkmath.Int) {
	bsorted := make([]Entry, len(buys))
	copy(bsorted, buys)
	sort.SliceStable(bsorted, func(i, j int) bool {
		return bsorted[i].Intent.Output.LimitPrice.GT(bsorted[j].Intent.Output.LimitPrice)
	})
	ssorted := make([]Entry, len(sells))
	copy(ssorted, sells)
	sort.SliceStable(ssorted, func(i, j int) bool {
		return ssorted[i].Intent.Output.LimitPrice.LT(ssorted[j].Intent.Output.LimitPrice)
	})

	bremaining := make([]sdkmath.Int, len(bsorted))
	for i, b := range bsorted {
		bremaining[i] = quantityOf(b)
	}
	sremaining := make([]sdkmath.Int, len(ssorted))
	for i, s := range ssorted {
		sremaining[i] = quantityOf(s)
	}

	var fills []types.AuctionFill

	i, j := 0, 0
	for i < len(bsorted) && j < len(ssorted) {
		buy, sell := bsorted[i], ssorted[j]
		if buy.Intent.Output.LimitPrice.LT(sell.Intent.Output.LimitPrice) {
			break
		}
		if buy.Intent.User == sell.Intent.User {
			// Reject self-crossing: the same user's own orders never cross.
			if bremaining[i].GT(sremaining[j]) {
				j++
			} else {
				i++
			}
			continue
		}
		amount := bremaining[i]
		if sremaining[j].LT(amount) {
			amount = sremaining[j]
		}
		if !amount.IsPositive() {
			if bremaining[i].IsZero() {
				i++
			} else {
				j++
			}
			continue
		}

		midpoint := buy.Intent.Output.LimitPrice.Add(sell.Intent.Output.LimitPrice).QuoInt64(2)
		fills = append(fills, types.AuctionFill{
			Source:       types.InternalMatch,
			BuyIntentID:  buy.Intent.ID,
			SellIntentID: sell.Intent.ID,
			Amount:       amount,
			Price:        midpoint,
		})

		bremaining[i] = bremaining[i].Sub(amount)
		sremaining[j] = sremaining[j].Sub(amount)
		if bremaining[i].IsZero() {
			i++
		}
		if sremaining[j].IsZero() {
			j++
		}
	}

	remaining := make(map[string]sdkmath.Int, len(bsorted)+len(ssorted))
	for idx, b := range bsorted {
		remaining[b.Intent.ID] = bremaining[idx]
	}
	for idx, s := range ssorted {
		remaining[s.Intent.ID] = sremaining[idx]
	}

	return fills, remaining
}

// limitRespected checks a single entry's limit price against a
// prospective execution price.
func limitRespected(e Entry, price sdkmath.LegacyDec) bool {
	if e.Intent.Output.LimitPrice.IsNil() {
		return true
	}
	if e.Side == intenttypes.SideBuy {
		return price.LTE(e.Intent.Output.LimitPrice)
	}
	return price.GTE(e.Intent.Output.LimitPrice)
}

func limitRespectedByID(entries []Entry, intentID string, price sdkmath.LegacyDec) bool {
	if intentID == "" {
		return true
	}
	for _, e := range entries {
		if e.Intent.ID == intentID {
			return limitRespected(e, price)
		}
	}
	return true
}

// sortQuotes orders candidate quotes best-first for side: ascending
// price for a buy residual (cheapest fill wins), descending for a
// sell residual (richest fill wins). Ties break on reputation
// descending.
func sortQuotes(ctx context.Context, quotes []solver.Quote, side intenttypes.Side, reputation ReputationSource) []solver.Quote {
	sorted := make([]solver.Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Fill.Price.Equal(sorted[j].Fill.Price) {
			if side == intenttypes.SideBuy {
				return sorted[i].Fill.Price.LT(sorted[j].Fill.Price)
			}
			return sorted[i].Fill.Price.GT(sorted[j].Fill.Price)
		}
		return repOf(ctx, reputation, sorted[i].SolverID).GT(repOf(ctx, reputation, sorted[j].SolverID))
	})
	return sorted
}

func repOf(ctx context.Context, reputation ReputationSource, solverID string) sdkmath.LegacyDec {
	if reputation == nil {
		return sdkmath.LegacyZeroDec()
	}
	return reputation.Reputation(ctx, solverID)
}

func residualsOf(entries []Entry, remainingByID map[string]sdkmath.Int) []residual {
	rs := make([]residual, len(entries))
	for i, e := range entries {
		rs[i] = residual{entry: e, remaining: remainingByID[e.Intent.ID]}
	}
	return rs
}

func volumeWeightedMidpoint(fills []types.AuctionFill) sdkmath.LegacyDec {
	totalAmount := sdkmath.ZeroInt()
	weighted := sdkmath.LegacyZeroDec()
	for _, f := range fills {
		totalAmount = totalAmount.Add(f.Amount)
		weighted = weighted.Add(f.Price.MulInt(f.Amount))
	}
	if totalAmount.IsZero() {
		return sdkmath.LegacyZeroDec()
	}
	return weighted.Quo(sdkmath.LegacyNewDecFromInt(totalAmount))
}

func checkCircuitBreaker(ctx context.Context, pair string, clearing sdkmath.LegacyDec, params Params, src OracleSource) error {
	if src == nil || clearing.IsNil() {
		return nil
	}
	price, err := src.Get(ctx, pair, oracle.Requirement{Kind: oracle.Optional})
	if err != nil {
		return nil
	}
	if price.Confidence.LT(params.ConfidenceThreshold) {
		return nil // not confident enough to trust for circuit-breaking
	}
	if price.Value.IsZero() {
		return nil
	}
	deviation := clearing.Sub(price.Value).Abs().Quo(price.Value)
	if deviation.GT(params.CircuitDeviationPct) {
		return types.ErrPriceOutsideOracleBand
	}
	return nil
}
