// Package winners computes the winners of the last awarded draw of a prize
// pool for one vault and a set of users.
package winners

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"twabWinners/config"
	"twabWinners/contract"
	"twabWinners/metrics"
	"twabWinners/prize"
	"twabWinners/prizepool"
	"twabWinners/twab"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Request describes one winner computation
type Request struct {
	ChainID            int64
	RPCURL             string
	PrizePool          common.Address
	Vault              common.Address
	Users              []common.Address
	IgnoreCanaries     bool
	BlockNumber        *big.Int // nil reads the latest block
	MulticallBatchSize int      // calldata bytes per aggregate3 call, 0 for the default
	Debug              bool

	// Node request pacing used by ComputeWinners, 0 for the defaults
	RPCRateLimit float64
	RPCRateBurst int
}

func (r Request) validate() error {
	if r.PrizePool == (common.Address{}) {
		return errors.New("prize pool address is required")
	}
	if r.Vault == (common.Address{}) {
		return errors.New("vault address is required")
	}
	if r.BlockNumber != nil && r.BlockNumber.Sign() < 0 {
		return fmt.Errorf("invalid block number %s", r.BlockNumber)
	}
	return nil
}

// Result is the outcome of a computation together with the draw state it
// was computed from
type Result struct {
	Snapshot *prizepool.Snapshot        `json:"snapshot"`
	Tiers    []prizepool.TierParameters `json:"tiers"`
	Winners  []Winner                   `json:"winners"`
	Duration time.Duration              `json:"duration"`
}

// Engine runs computations against one node
type Engine struct {
	caller      contract.Caller
	log         zerolog.Logger
	concurrency int
	chunkSize   int
	batchSize   int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithConcurrency bounds the number of tiers evaluated at once
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithChunkSize fixes the number of users per win check instead of
// deriving it from the tier's prize count
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithBatchSize sets the calldata bytes per aggregate3 call for reads that
// don't name their own batch size
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEngine creates an engine reading through caller
func NewEngine(caller contract.Caller, opts ...Option) *Engine {
	e := &Engine{
		caller:      caller,
		log:         zerolog.Nop(),
		concurrency: config.MaxTierConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// tierJob carries what every tier task of one run shares
type tierJob struct {
	req      Request
	snapshot *prizepool.Snapshot
	pools    *prizepool.Gateway
	twabs    *twab.Gateway
	cache    *twab.WindowCache
	agg      *Aggregate
	log      zerolog.Logger

	chunkSize int
}

// Run fetches the draw state once, evaluates every tier concurrently and
// merges the wins. The first failed required read aborts the run and no
// winners are returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, req)
	metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ComputeRuns.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.ComputeRuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Engine) run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	log := e.log.With().Str("pool", req.PrizePool.Hex()).Str("vault", req.Vault.Hex()).Logger()
	if req.Debug {
		log = log.Level(zerolog.DebugLevel)
	}

	// Each user is read and evaluated once
	req.Users = uniqueUsers(req.Users)

	batchSize := req.MulticallBatchSize
	if batchSize <= 0 {
		batchSize = e.batchSize
	}
	mc := contract.NewMulticaller(e.caller, batchSize)
	pools := prizepool.NewGateway(mc)

	snapshot, err := pools.FetchPoolSnapshot(ctx, req.PrizePool, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	tiers, err := pools.FetchTierParameters(ctx, req.PrizePool, snapshot.NumTiers, snapshot.LastAwardedDrawID, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Uint32("drawId", snapshot.LastAwardedDrawID).
		Uint8("tiers", snapshot.NumTiers).
		Int("users", len(req.Users)).
		Msg("fetched prize pool state")

	job := &tierJob{
		req:      req,
		snapshot: snapshot,
		pools:    pools,
		twabs:    twab.NewGateway(mc, log),
		cache:    twab.NewWindowCache(),
		agg:      NewAggregate(),
		log:      log,

		chunkSize: e.chunkSize,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, tp := range tiers {
		if req.IgnoreCanaries && snapshot.IsCanary(tp.Tier) {
			log.Debug().Uint8("tier", tp.Tier).Msg("skipping canary tier")
			continue
		}
		if tp.PrizeCount == 0 || len(req.Users) == 0 {
			continue
		}
		g.Go(func() error {
			return job.evaluate(gctx, tp)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Snapshot: snapshot,
		Tiers:    tiers,
		Winners:  job.agg.Winners(),
	}, nil
}

func (j *tierJob) evaluate(ctx context.Context, tp prizepool.TierParameters) error {
	start := time.Now()
	block := j.req.BlockNumber

	portion, err := j.pools.FetchVaultPortion(ctx, j.req.PrizePool, j.req.Vault, tp.StartDrawID, j.snapshot.LastAwardedDrawID, block)
	if err != nil {
		return err
	}

	window := twab.Window{Start: tp.StartTimestamp, End: j.snapshot.LastAwardedDrawClosedAt}
	balances, err := j.cache.Resolve(ctx, window, func(ctx context.Context, w twab.Window) (*twab.Balances, error) {
		return j.twabs.FetchTwabs(ctx, j.snapshot.TwabController, j.req.Vault, j.req.Users, w, block)
	})
	if err != nil {
		return err
	}

	draw := prize.TierDraw{
		DrawID:              j.snapshot.LastAwardedDrawID,
		Vault:               j.req.Vault,
		Tier:                tp.Tier,
		PrizeCount:          tp.PrizeCount,
		Odds:                tp.Odds,
		VaultPortion:        portion,
		VaultTotalSupply:    balances.VaultTotalSupply,
		WinningRandomNumber: j.snapshot.WinningRandomNumber,
	}

	found := 0
	size := j.chunkSize
	if size == 0 {
		size = ChunkSize(tp.PrizeCount)
	}
	users := balances.Users
	for lo := 0; lo < len(users); lo += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+size, len(users))
		wins, err := prize.ComputeWins(draw, users[lo:hi])
		if err != nil {
			return fmt.Errorf("tier %d: %w", tp.Tier, err)
		}
		j.agg.Add(wins)
		found += len(wins)
	}
	metrics.WinsFound.WithLabelValues(strconv.Itoa(int(tp.Tier))).Add(float64(found))

	j.log.Debug().
		Uint8("tier", tp.Tier).
		Uint32("prizeCount", tp.PrizeCount).
		Stringer("window", window).
		Int("chunkSize", size).
		Int("wins", found).
		Dur("took", time.Since(start)).
		Msg("tier evaluated")
	return nil
}

// uniqueUsers drops repeated addresses, keeping first-seen order
func uniqueUsers(users []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(users))
	out := make([]common.Address, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ComputeWinners dials the node named by req, checking that it serves
// req.ChainID, and runs the computation through a rate limited caller
func ComputeWinners(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	client, err := contract.Dial(ctx, req.ChainID, req.RPCURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	caller := contract.NewThrottledCaller(client.Network.Name, client, req.RPCRateLimit, req.RPCRateBurst)
	return NewEngine(caller, opts...).Run(ctx, req)
}
