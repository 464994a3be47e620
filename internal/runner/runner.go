package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/model"
)

// Resolver resolves one raw URL. *trace.Tracer satisfies it.
type Resolver interface {
	Trace(ctx context.Context, raw string) model.CheckResult
}

// Config holds settings for the runner.
type Config struct {
	Threads   int
	RateLimit int // resolutions started per second, 0 = unlimited
	// OnResult, if set, is called as each result completes. Calls are
	// serialized; idx is the input position.
	OnResult func(idx int, res model.CheckResult)
}

// Runner fans resolutions out over a bounded pool of workers.
type Runner struct {
	cfg      Config
	resolver Resolver
	logger   *zap.Logger
}

// New creates a new Runner.
func New(cfg Config, resolver Resolver, logger *zap.Logger) *Runner {
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, resolver: resolver, logger: logger}
}

// Run resolves every target and returns one result per target, in input
// order. Targets left undispatched when ctx ends get an overall-timeout
// result, so len(result) == len(targets) always holds.
func (r *Runner) Run(ctx context.Context, targets []string) []model.CheckResult {
	out := make([]model.CheckResult, len(targets))
	done := make([]bool, len(targets))
	mu := &sync.Mutex{}
	var (
		rateCh <-chan time.Time
		ticker *time.Ticker
	)
	if r.cfg.RateLimit > 0 {
		ticker = time.NewTicker(rateInterval(r.cfg.RateLimit))
		rateCh = ticker.C
		defer ticker.Stop()
	}

	type job struct {
		idx    int
		target string
	}

	record := func(idx int, res model.CheckResult) {
		mu.Lock()
		defer mu.Unlock()
		out[idx] = res
		done[idx] = true
		if r.cfg.OnResult != nil {
			r.cfg.OnResult(idx, res)
		}
	}

	jobs := make(chan job)
	wg := sync.WaitGroup{}
	for i := 0; i < r.cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				if rateCh != nil {
					select {
					case <-ctx.Done():
						continue
					case <-rateCh:
					}
				}
				record(jb.idx, r.resolveIsolated(ctx, jb.target))
			}
		}()
	}

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- job{idx: i, target: t}:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	for i := range targets {
		if !done[i] {
			record(i, abandoned(targets[i], ctx.Err()))
		}
	}
	return out
}

// resolveIsolated keeps a panic in one resolution from taking the batch down.
func (r *Runner) resolveIsolated(ctx context.Context, target string) (res model.CheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Resolution panicked",
				zap.String("target", target),
				zap.Any("panic", rec))
			res = failed(target, model.ErrTransportOther, fmt.Sprintf("internal error: %v", rec))
		}
	}()
	return r.resolver.Trace(ctx, target)
}

// rateInterval is the ticker period for limit starts per second, never
// below one nanosecond.
func rateInterval(limit int) time.Duration {
	interval := time.Second / time.Duration(limit)
	if interval <= 0 {
		return time.Nanosecond
	}
	return interval
}

func abandoned(target string, cause error) model.CheckResult {
	kind := model.ErrTransportOther
	msg := "not started"
	if cause != nil {
		msg = "not started: " + cause.Error()
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		kind = model.ErrOverallTimeout
	}
	return failed(target, kind, msg)
}

// failed builds an error result for a target the resolver never finished.
// SourceURL echoes the input; no response was seen, so TargetURL is empty.
func failed(target string, kind model.ErrorKind, msg string) model.CheckResult {
	return model.CheckResult{
		SourceURL:    target,
		Hops:         []model.RedirectHop{},
		Error:        &kind,
		ErrorMessage: msg,
		StartedAt:    time.Now(),
	}
}
