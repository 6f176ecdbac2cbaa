// Package ingress shards incoming commands across a fixed set of
// single-goroutine workers keyed by symbol, and applies backpressure ahead
// of the single-threaded matching engine, which must see commands for one
// symbol serialized but can run independent symbols concurrently.
package ingress

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nexustrade/lobengine/pkg/apierr"
)

// Command is a unit of work submitted for a single symbol; Run executes
// against that symbol's matching manager on the symbol's shard goroutine.
type Command struct {
	SymbolID uint32
	Run      func()
}

// Gateway rate-limits and dispatches Commands onto a fixed number of
// single-worker ants pools, one shard per hashed symbol. A symbol's
// commands always land on the same shard, so they run strictly
// serialized against each other while different symbols' shards execute
// concurrently — the shared-nothing partitioning the matching engine
// requires, since neither Manager nor the book arenas hold a lock.
type Gateway struct {
	shards  []*ants.Pool
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Gateway sharded across shardCount single-goroutine
// workers, with one token-bucket limiter, shared by all shards, admitting
// ratePerSecond commands per second with bursts of up to burst.
func New(shardCount int, ratePerSecond float64, burst int, logger *zap.Logger) (*Gateway, error) {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]*ants.Pool, 0, shardCount)
	for i := 0; i < shardCount; i++ {
		pool, err := ants.NewPool(1, ants.WithNonblocking(false))
		if err != nil {
			for _, p := range shards {
				p.Release()
			}
			return nil, fmt.Errorf("ingress: create shard worker: %w", err)
		}
		shards = append(shards, pool)
	}
	return &Gateway{
		shards:  shards,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		logger:  logger,
	}, nil
}

// shardFor returns the fixed shard that symbolID's commands always route
// through.
func (g *Gateway) shardFor(symbolID uint32) *ants.Pool {
	return g.shards[symbolID%uint32(len(g.shards))]
}

// Submit blocks until ctx's deadline or the rate limiter admits the
// command, then queues it on its symbol's shard. It returns an apierr error
// with apierr.CodeRateLimited if the limiter cannot admit the command
// before ctx is done.
func (g *Gateway) Submit(ctx context.Context, cmd Command) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return apierr.New(apierr.CodeRateLimited, "command queue saturated").WithDetail("symbol_id", cmd.SymbolID)
	}
	done := make(chan struct{})
	submitErr := g.shardFor(cmd.SymbolID).Submit(func() {
		defer close(done)
		cmd.Run()
	})
	if submitErr != nil {
		return apierr.Wrap(apierr.CodeInternal, "submit command to worker pool", submitErr)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases every shard's worker pool.
func (g *Gateway) Close() {
	for _, pool := range g.shards {
		pool.Release()
	}
}
