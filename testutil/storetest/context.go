// Package storetest gives keeper tests a minimal in-memory
// cosmossdk.io/collections-backed store without needing a full simapp,
// the same DefaultContextWithDB + runtime.NewKVStoreService boilerplate
// every x/<module> keeper test in the Cosmos SDK ecosystem uses.
package storetest

import (
	"context"
	"testing"

	sdkstore "cosmossdk.io/core/store"
	"github.com/cosmos/cosmos-sdk/runtime"
	storetypes "github.com/cosmos/cosmos-sdk/store/types"
	"github.com/cosmos/cosmos-sdk/testutil"
)

// NewContext returns a context.Context usable by collections-backed
// keepers, and the KVStoreService needed to construct one.
func NewContext(t *testing.T) (context.Context, sdkstore.KVStoreService) {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey("test")
	tkey := storetypes.NewTransientStoreKey("transient_test")
	testCtx := testutil.DefaultContextWithDB(t, storeKey, tkey)

	storeService := runtime.NewKVStoreService(storeKey)
	return testCtx.Ctx, storeService
}
