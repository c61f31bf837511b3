package recovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/intent-swap-core/pkg/recovery"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

type fakeLister struct {
	records []settlementtypes.Record
	err     error
}

func (f fakeLister) ListNonTerminal(context.Context) ([]settlementtypes.Record, error) {
	return f.records, f.err
}

type fakeResumer struct {
	resumed []string
	fail    map[string]error
}

func (f *fakeResumer) Resume(_ context.Context, settlementID string, _ time.Time) error {
	f.resumed = append(f.resumed, settlementID)
	return f.fail[settlementID]
}

func TestSweepResumesEveryNonTerminalSettlement(t *testing.T) {
	lister := fakeLister{records: []settlementtypes.Record{
		{SettlementID: "s1", Status: settlementtypes.Pending},
		{SettlementID: "s2", Status: settlementtypes.SolverLocked},
		{SettlementID: "s3", Status: settlementtypes.Executing},
	}}
	resumer := &fakeResumer{fail: map[string]error{}}
	sweep := recovery.New(log.NewNopLogger(), lister, resumer)

	results, err := sweep.Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, []string{"s1", "s2", "s3"}, resumer.resumed)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
}

func TestSweepContinuesPastAResumeFailure(t *testing.T) {
	lister := fakeLister{records: []settlementtypes.Record{
		{SettlementID: "broken", Status: settlementtypes.UserLocked},
		{SettlementID: "fine", Status: settlementtypes.SolverLocked},
	}}
	resumer := &fakeResumer{fail: map[string]error{"broken": errors.New("vault unreachable")}}
	sweep := recovery.New(log.NewNopLogger(), lister, resumer)

	results, err := sweep.Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Equal(t, []string{"broken", "fine"}, resumer.resumed)
}

func TestSweepPropagatesListerFailure(t *testing.T) {
	lister := fakeLister{err: errors.New("store unavailable")}
	resumer := &fakeResumer{}
	sweep := recovery.New(log.NewNopLogger(), lister, resumer)

	_, err := sweep.Run(context.Background(), time.Now())
	require.Error(t, err)
	require.Empty(t, resumer.resumed)
}
