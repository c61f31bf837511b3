// Package appstore bootstraps the cosmossdk.io/collections-backed
// store cmd/intentd's keepers run against, without pulling in the
// baseapp/consensus machinery a full chain node needs. It is the
// production counterpart to testutil/storetest: same store shape, but
// backed by a real on-disk (or in-memory) database instead of a
// throwaway per-test one.
package appstore

import (
	"context"
	"time"

	sdkstore "cosmossdk.io/core/store"
	"cosmossdk.io/log"
	"cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Store owns the committed multistore backing every keeper's
// collections.Map/Item, plus the context keepers read and write
// through.
type Store struct {
	cms    storetypes.CommitMultiStore
	key    *storetypes.KVStoreKey
	logger log.Logger
}

// Open mounts a single KV store under dataDir (empty for an in-memory
// store, useful for devnets and tests that want production wiring
// without disk state) and loads its latest committed version.
func Open(dataDir string, logger log.Logger) (*Store, error) {
	db, err := openDB(dataDir)
	if err != nil {
		return nil, err
	}

	key := storetypes.NewKVStoreKey("intentd")
	cms := rootmulti.NewStore(db, logger, metrics.NewNoOpMetrics())
	cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, err
	}

	return &Store{cms: cms, key: key, logger: logger}, nil
}

func openDB(dataDir string) (dbm.DB, error) {
	if dataDir == "" {
		return dbm.NewMemDB(), nil
	}
	return dbm.NewDB("intentd", dbm.GoLevelDBBackend, dataDir)
}

// KVStoreService returns the service keepers are constructed with.
func (s *Store) KVStoreService() sdkstore.KVStoreService {
	return runtime.NewKVStoreService(s.key)
}

// Context returns a context.Context keepers can operate through,
// stamped with now as the block time every collections-backed call in
// this process treats as "current".
func (s *Store) Context(now time.Time) context.Context {
	header := tmproto.Header{Time: now}
	return sdk.NewContext(s.cms, header, false, s.logger)
}

// Commit persists every write issued through a Context since the last
// Commit. cmd/intentd calls this after each unit of work (registry
// params seeding, a dispatch cycle that relayed packets, a recovery
// sweep, the relayer give-up hook) so a crash loses at most the writes
// of the unit in progress.
func (s *Store) Commit() {
	s.cms.Commit()
}
