package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig controls how a backend is called.
type GuardConfig struct {
	Name       string
	BatchSize  int           // items per backend call
	Timeout    time.Duration // deadline for one backend call
	RPS        float64       // client-side call rate; <= 0 disables limiting
	MaxRetries int           // retries after the first attempt, transient errors only
	RetryDelay time.Duration // base delay, doubled per attempt
}

// DefaultGuardConfig returns defaults suited to hosted embedding APIs.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:       "embeddings",
		BatchSize:  64,
		Timeout:    30 * time.Second,
		RPS:        10,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Guard wraps a backend with batching, rate limiting, a circuit breaker,
// bounded retries and per-call deadlines. Any failure it cannot recover from
// is reported as ErrEmbeddingUnavailable, and it never returns a partial map.
type Guard struct {
	next    Gateway
	cfg     GuardConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	stats   *Stats
	log     *slog.Logger
}

func NewGuard(next Gateway, cfg GuardConfig, stats *Stats, log *slog.Logger) *Guard {
	def := DefaultGuardConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = max(1, int(cfg.RPS))
	}

	g := &Guard{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		stats:   stats,
		log:     log,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("embedding circuit breaker", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

// Stats returns the latency tracker shared with this guard.
func (g *Guard) Stats() *Stats { return g.stats }

func (g *Guard) Embed(ctx context.Context, items []Item) (map[string][]float32, error) {
	out := make(map[string][]float32, len(items))
	dim := 0
	for start := 0; start < len(items); start += g.cfg.BatchSize {
		batch := items[start:min(start+g.cfg.BatchSize, len(items))]
		vecs, err := g.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, it := range batch {
			v, ok := vecs[it.ID]
			if !ok || len(v) == 0 {
				return nil, fmt.Errorf("%w: no vector returned for %q", ErrEmbeddingUnavailable, it.ID)
			}
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("%w: dimension %d for %q, expected %d", ErrEmbeddingUnavailable, len(v), it.ID, dim)
			}
			out[it.ID] = v
		}
	}
	return out, nil
}

func (g *Guard) embedBatch(ctx context.Context, batch []Item) (map[string][]float32, error) {
	retryable := func(err error) bool {
		if IsRetryable(err) {
			return true
		}
		// A per-call deadline is transient; the caller's own deadline is not.
		return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
	}

	vecs, err := retry.DoWithData(
		func() (map[string][]float32, error) {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()

			start := time.Now()
			res, err := g.breaker.Execute(func() (interface{}, error) {
				return g.next.Embed(callCtx, batch)
			})
			g.stats.Record(time.Since(start).Milliseconds(), err)
			if err != nil {
				return nil, err
			}
			return res.(map[string][]float32), nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.cfg.MaxRetries)+1),
		retry.Delay(g.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.log.Warn("embedding batch retry", "attempt", n+1, "items", len(batch), "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vecs, nil
}
