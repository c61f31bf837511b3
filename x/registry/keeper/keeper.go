// Package keeper implements the channel/route registry and solver
// registry: BFS route discovery over a channel graph, PFM memo
// construction for multi-hop transfers, and solver
// bond/reputation/exposure bookkeeping.
package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"cosmossdk.io/collections"
	sdkstore "cosmossdk.io/core/store"
	sdkmath "cosmossdk.io/math"
	packetforwardtypes "github.com/cosmos/ibc-apps/middleware/packet-forward-middleware/v10/packetforward/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"

	"github.com/tokenize-x/intent-swap-core/pkg/collutil"
	"github.com/tokenize-x/intent-swap-core/x/registry/types"
)

// Keeper persists the channel graph and the solver registry over a
// cosmossdk.io/collections-backed store.
type Keeper struct {
	storeService sdkstore.KVStoreService
	authority    string

	Schema   collections.Schema
	Params   collections.Item[types.Params]
	Channels collections.Map[collections.Pair[string, string], types.Channel] // (chainID, channelID) -> Channel
	Solvers  collections.Map[string, types.Solver]
}

// NewKeeper returns a new registry keeper. Callers must still invoke
// SetParams once with a real context before relying on RouteTimeout or
// ReserveExposure, the same way x/pse's params are seeded by genesis
// rather than at construction.
func NewKeeper(storeService sdkstore.KVStoreService, authority string) Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := Keeper{
		storeService: storeService,
		authority:    authority,
		Params: collections.NewItem(
			sb,
			collections.NewPrefix(0),
			"params",
			collutil.NewJSONValue[types.Params]("Params"),
		),
		Channels: collections.NewMap(
			sb,
			collections.NewPrefix(1),
			"channels",
			collections.PairKeyCodec(collections.StringKey, collections.StringKey),
			collutil.NewJSONValue[types.Channel]("Channel"),
		),
		Solvers: collections.NewMap(
			sb,
			collections.NewPrefix(2),
			"solvers",
			collections.StringKey,
			collutil.NewJSONValue[types.Solver]("Solver"),
		),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema
	return k
}

// SetParams overwrites the registry's policy params.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	return k.Params.Set(ctx, params)
}

func (k Keeper) getParams(ctx context.Context) (types.Params, error) {
	return k.Params.Get(ctx)
}

// RegisterChannel records a directed IBC edge from chainID to
// counterpartyChainID over channelID. Callers register both
// directions of a channel explicitly, mirroring how the underlying
// IBC channel handshake itself is symmetric but independently opened
// on each side.
func (k Keeper) RegisterChannel(ctx context.Context, chainID, channelID, counterpartyChainID string) error {
	return k.Channels.Set(ctx, collections.Join(chainID, channelID), types.Channel{
		ChainID:             chainID,
		ChannelID:           channelID,
		CounterpartyChainID: counterpartyChainID,
		Port:                transfertypes.PortID,
	})
}

func (k Keeper) adjacency(ctx context.Context) (map[string][]types.Channel, error) {
	graph := make(map[string][]types.Channel)
	err := k.Channels.Walk(ctx, nil, func(_ collections.Pair[string, string], ch types.Channel) (bool, error) {
		graph[ch.ChainID] = append(graph[ch.ChainID], ch)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// FindRoute performs BFS over the channel graph to find the
// minimum-hops path from source to dest: BFS guarantees fewest hops,
// minimizing failure surface. source == dest returns the empty
// (same-chain) route.
func (k Keeper) FindRoute(ctx context.Context, source, dest string) (types.Route, error) {
	if source == dest {
		return types.Route{}, nil
	}
	graph, err := k.adjacency(ctx)
	if err != nil {
		return types.Route{}, err
	}

	type node struct {
		chainID string
		path    []types.Hop
	}
	visited := map[string]bool{source: true}
	queue := []node{{chainID: source}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range graph[cur.chainID] {
			if visited[edge.CounterpartyChainID] {
				continue
			}
			path := append(append([]types.Hop{}, cur.path...), types.Hop{
				ChainID:   edge.CounterpartyChainID,
				ChannelID: edge.ChannelID,
				Port:      edge.Port,
			})
			if edge.CounterpartyChainID == dest {
				return types.Route{Hops: path}, nil
			}
			visited[edge.CounterpartyChainID] = true
			queue = append(queue, node{chainID: edge.CounterpartyChainID, path: path})
		}
	}
	return types.Route{}, types.ErrNoRouteFound
}

// FindAllRoutes enumerates every simple path from source to dest with
// at most maxHops hops, for cost/time selection among alternatives.
// Routes are returned shortest-first.
func (k Keeper) FindAllRoutes(ctx context.Context, source, dest string, maxHops int) ([]types.Route, error) {
	graph, err := k.adjacency(ctx)
	if err != nil {
		return nil, err
	}

	var routes []types.Route
	var visit func(chainID string, path []types.Hop, seen map[string]bool)
	visit = func(chainID string, path []types.Hop, seen map[string]bool) {
		if len(path) > maxHops {
			return
		}
		if chainID == dest && len(path) > 0 {
			routes = append(routes, types.Route{Hops: append([]types.Hop{}, path...)})
			return
		}
		for _, edge := range graph[chainID] {
			if seen[edge.CounterpartyChainID] {
				continue
			}
			seen[edge.CounterpartyChainID] = true
			visit(edge.CounterpartyChainID, append(path, types.Hop{
				ChainID:   edge.CounterpartyChainID,
				ChannelID: edge.ChannelID,
				Port:      edge.Port,
			}), seen)
			delete(seen, edge.CounterpartyChainID)
		}
	}
	visit(source, nil, map[string]bool{source: true})

	sort.SliceStable(routes, func(i, j int) bool { return len(routes[i].Hops) < len(routes[j].Hops) })
	if len(routes) == 0 {
		return nil, types.ErrNoRouteFound
	}
	return routes, nil
}

// RouteTimeout applies the timeout-scaling formula to route using the
// registry's configured BaseTimeout.
func (k Keeper) RouteTimeout(ctx context.Context, route types.Route, hasContractHook bool) (time.Duration, error) {
	params, err := k.getParams(ctx)
	if err != nil {
		return 0, err
	}
	return types.Timeout(route, params.BaseTimeout, hasContractHook), nil
}

// forwardHop extends the real ibc-apps PFM ForwardMetadata with a
// Next field carrying the next hop's own memo, recursively, since the
// nested multi-hop shape itself is not exercised anywhere the
// receiver/port/channel fields were grounded on.
type forwardHop struct {
	packetforwardtypes.ForwardMetadata
	Next json.RawMessage `json:"next,omitempty"`
}

type forwardMemo struct {
	Forward forwardHop `json:"forward"`
}

// BuildPFMMemo builds the nested PFM forwarding memo for route: each
// hop after the first is embedded under the previous hop's
// "forward.next", terminating at finalReceiver. A single-hop (or
// same-chain) route returns an empty memo: ordinary transfer, nothing
// to forward.
func (k Keeper) BuildPFMMemo(route types.Route, finalReceiver string, retries uint8) (string, error) {
	if len(route.Hops) <= 1 {
		return "", nil
	}

	// Build from the innermost (last) hop outward.
	var inner json.RawMessage
	for i := len(route.Hops) - 1; i >= 1; i-- {
		hop := route.Hops[i]
		receiver := finalReceiver
		if i != len(route.Hops)-1 {
			// Intermediate hops use the recommended invalid-bech32
			// placeholder; PFM overwrites it with the module account.
			receiver = pfmIntermediateReceiver
		}
		memo := forwardMemo{Forward: forwardHop{
			ForwardMetadata: packetforwardtypes.ForwardMetadata{
				Receiver: receiver,
				Port:     hop.Port,
				Channel:  hop.ChannelID,
				Retries:  &retries,
			},
			Next: inner,
		}}
		encoded, err := json.Marshal(memo)
		if err != nil {
			return "", err
		}
		inner = encoded
	}
	return string(inner), nil
}

// pfmIntermediateReceiver is the recommended invalid-bech32 receiver
// placeholder for chains the transfer only passes through.
const pfmIntermediateReceiver = "pfm"

// -- solver registry --

func (k Keeper) getSolver(ctx context.Context, solverID string) (types.Solver, error) {
	s, err := k.Solvers.Get(ctx, solverID)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.Solver{}, types.ErrSolverNotFound
		}
		return types.Solver{}, err
	}
	return s, nil
}

// RegisterSolver onboards a new solver with an initial bond.
func (k Keeper) RegisterSolver(ctx context.Context, solverID, operator string, bond sdkmath.Int, now time.Time) error {
	if _, err := k.getSolver(ctx, solverID); err == nil {
		return types.ErrSolverAlreadyExists
	}
	return k.Solvers.Set(ctx, solverID, types.Solver{
		SolverID:   solverID,
		Operator:   operator,
		Bond:       bond,
		Exposure:   sdkmath.ZeroInt(),
		Reputation: sdkmath.LegacyZeroDec(),
		Slashed:    sdkmath.ZeroInt(),
		BondedAt:   now,
	})
}

// Reputation satisfies x/auction's ReputationSource, used to
// tie-break solver quotes at equal clearing price.
func (k Keeper) Reputation(ctx context.Context, solverID string) sdkmath.LegacyDec {
	s, err := k.getSolver(ctx, solverID)
	if err != nil {
		return sdkmath.LegacyZeroDec()
	}
	return s.Reputation
}

// Slash satisfies x/settlement's SolverRegistryKeeper: a solver's
// fault (timeout) reduces its bond and records the penalty.
func (k Keeper) Slash(ctx context.Context, solverID string, amount sdkmath.Int) error {
	s, err := k.getSolver(ctx, solverID)
	if err != nil {
		return err
	}
	deducted := amount
	if deducted.GT(s.Bond) {
		deducted = s.Bond
	}
	s.Bond = s.Bond.Sub(deducted)
	s.Slashed = s.Slashed.Add(deducted)
	s.Reputation = s.Reputation.Sub(reputationSlashPenalty)
	if s.Reputation.IsNegative() {
		s.Reputation = sdkmath.LegacyZeroDec()
	}
	return k.Solvers.Set(ctx, solverID, s)
}

// reputationSlashPenalty is the flat reputation deduction applied on
// every slash event, independent of the slashed amount.
var reputationSlashPenalty = sdkmath.LegacyMustNewDecFromStr("0.1")

// RecordFillReputationGain rewards a solver's reputation for a
// completed settlement, weighted by fill size relative to its bond so
// a large solver does not dominate tie-breaks purely on volume.
func (k Keeper) RecordFillReputationGain(ctx context.Context, solverID string, fillAmount sdkmath.Int) error {
	s, err := k.getSolver(ctx, solverID)
	if err != nil {
		return err
	}
	if s.Bond.IsZero() {
		return nil
	}
	gain := sdkmath.LegacyNewDecFromInt(fillAmount).Quo(sdkmath.LegacyNewDecFromInt(s.Bond))
	s.Reputation = s.Reputation.Add(gain)
	return k.Solvers.Set(ctx, solverID, s)
}

// ReserveExposure books amount against solverID's open exposure ahead
// of a settlement and enforces the bond/exposure circuit breaker: the
// solver's bond ratio governs its maximum open exposure.
func (k Keeper) ReserveExposure(ctx context.Context, solverID string, amount sdkmath.Int) error {
	s, err := k.getSolver(ctx, solverID)
	if err != nil {
		return err
	}
	newExposure := s.Exposure.Add(amount)
	if newExposure.IsPositive() {
		params, err := k.getParams(ctx)
		if err != nil {
			return err
		}
		ratio := sdkmath.LegacyNewDecFromInt(s.Bond).Quo(sdkmath.LegacyNewDecFromInt(newExposure))
		if ratio.LT(params.MinBondRatio) {
			return types.ErrBondRatioBelowThreshold
		}
	}
	s.Exposure = newExposure
	return k.Solvers.Set(ctx, solverID, s)
}

// ReleaseExposure reverses a prior ReserveExposure once a settlement
// reaches a terminal status.
func (k Keeper) ReleaseExposure(ctx context.Context, solverID string, amount sdkmath.Int) error {
	s, err := k.getSolver(ctx, solverID)
	if err != nil {
		return err
	}
	s.Exposure = s.Exposure.Sub(amount)
	if s.Exposure.IsNegative() {
		s.Exposure = sdkmath.ZeroInt()
	}
	return k.Solvers.Set(ctx, solverID, s)
}
