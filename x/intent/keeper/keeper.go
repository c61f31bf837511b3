// Package keeper provides the stateful half of intent processing: the
// per-user nonce watermark that makes CanonicalHash-backed signatures
// replay-resistant.
package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	sdkstore "cosmossdk.io/core/store"

	"github.com/tokenize-x/intent-swap-core/pkg/collutil"
	"github.com/tokenize-x/intent-swap-core/x/intent/types"
)

// maxNonceWindow bounds the number of out-of-order nonces tracked per
// user above the watermark.
const maxNonceWindow = 4096

// nonceWindow is the per-user replay-protection state: watermark is
// the highest nonce at or below which every nonce is known consumed; seen
// holds out-of-order nonces above the watermark that have been used
// but haven't yet been absorbed into it.
type nonceWindow struct {
	Watermark uint64
	Seen      map[uint64]struct{}
}

// Keeper tracks per-user nonces to reject intent replay.
type Keeper struct {
	storeService sdkstore.KVStoreService
	Nonces       collections.Map[string, nonceWindow]
}

// NewKeeper returns a new intent-replay keeper.
func NewKeeper(storeService sdkstore.KVStoreService) Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := Keeper{
		storeService: storeService,
		Nonces: collections.NewMap(
			sb,
			collections.NewPrefix(0),
			"intent_nonces",
			collections.StringKey,
			collutil.NewJSONValue[nonceWindow]("nonceWindow"),
		),
	}
	if _, err := sb.Build(); err != nil {
		panic(err)
	}
	return k
}

// CheckAndRecordNonce rejects a nonce already known used for user, and
// otherwise records it. It must be called after types.Verify succeeds
// and before the intent is allowed to produce a fill: at most one
// intent per (user, nonce) ever produces a fill.
func (k Keeper) CheckAndRecordNonce(ctx context.Context, user string, nonce uint64) error {
	win, err := k.Nonces.Get(ctx, user)
	if err != nil {
		if !errors.Is(err, collections.ErrNotFound) {
			return err
		}
		win = nonceWindow{Watermark: 0, Seen: map[uint64]struct{}{}}
	}

	if nonce <= win.Watermark {
		return types.ErrNonceAlreadyUsed
	}
	if _, used := win.Seen[nonce]; used {
		return types.ErrNonceAlreadyUsed
	}

	if win.Seen == nil {
		win.Seen = map[uint64]struct{}{}
	}
	win.Seen[nonce] = struct{}{}

	// Absorb any contiguous run above the watermark.
	for {
		next := win.Watermark + 1
		if _, ok := win.Seen[next]; !ok {
			break
		}
		delete(win.Seen, next)
		win.Watermark = next
	}

	// Bound memory: once the out-of-order window grows past the cap,
	// fast-forward the watermark to the oldest still-outstanding gap
	// rather than let it grow unboundedly.
	if len(win.Seen) > maxNonceWindow {
		min := win.Watermark
		for n := range win.Seen {
			if min == win.Watermark || n < min {
				min = n
			}
		}
		win.Watermark = min - 1
	}

	return k.Nonces.Set(ctx, user, win)
}
