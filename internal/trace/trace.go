package trace

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/detect"
	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/util"
)

const (
	DefaultMaxHops = 10
	DefaultBudget  = 30 * time.Second
)

// Response is a single, unfollowed HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Transport issues one request without following redirects. A failure to
// obtain any response is reported as *model.TransportError.
type Transport interface {
	Do(ctx context.Context, url string) (*Response, error)
}

// Options tunes a Tracer. Zero values fall back to the defaults.
type Options struct {
	MaxHops int
	// Budget bounds the wall-clock time of one resolution across all hops.
	Budget time.Duration
	// StrictLoops stops as soon as a location repeats instead of running
	// into the hop cap.
	StrictLoops bool
}

// Observer receives the outcome of every resolution. Implemented by the
// metrics collector.
type Observer interface {
	ObserveResult(res model.CheckResult)
}

// Tracer walks redirect chains hop by hop.
type Tracer struct {
	transport Transport
	opts      Options
	logger    *zap.Logger
	observer  Observer
}

// New creates a Tracer. It panics on a nil transport.
func New(t Transport, opts Options, logger *zap.Logger) *Tracer {
	if t == nil {
		panic("trace: nil transport")
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{transport: t, opts: opts, logger: logger}
}

// WithObserver attaches an observer notified after each Trace call.
func (t *Tracer) WithObserver(o Observer) *Tracer {
	t.observer = o
	return t
}

// Options returns the effective options.
func (t *Tracer) Options() Options { return t.opts }

// Trace resolves raw into a CheckResult. It never returns an error: every
// failure is described by the result itself.
func (t *Tracer) Trace(ctx context.Context, raw string) model.CheckResult {
	res := t.trace(ctx, raw)
	if t.observer != nil {
		t.observer.ObserveResult(res)
	}
	return res
}

func (t *Tracer) trace(ctx context.Context, raw string) (res model.CheckResult) {
	res = model.CheckResult{StartedAt: time.Now(), Hops: []model.RedirectHop{}}
	defer func() { res.DurationMs = time.Since(res.StartedAt).Milliseconds() }()

	source, err := util.NormalizeURL(raw)
	if err != nil {
		// no absolute URL exists, so TargetURL stays empty
		res.SourceURL = raw
		t.fail(&res, model.ErrInvalidURL, err.Error())
		return res
	}
	res.SourceURL = source

	ctx, cancel := context.WithTimeout(ctx, t.opts.Budget)
	defer cancel()

	current := source
	visited := map[string]struct{}{util.StripFragment(source): {}}
	log := t.logger.With(zap.String("source", source))

	for requests := 0; ; requests++ {
		res.TargetURL = current
		if ctx.Err() != nil {
			t.fail(&res, contextKind(ctx), ctx.Err().Error())
			return res
		}

		resp, err := t.transport.Do(ctx, current)
		if err != nil {
			kind, msg := classify(ctx, err)
			log.Debug("Request failed",
				zap.String("url", current),
				zap.Int("hop", len(res.Hops)),
				zap.String("kind", string(kind)),
				zap.Error(err))
			t.fail(&res, kind, msg)
			return res
		}

		if requests == 0 {
			res.InitialStatus = resp.StatusCode
		}
		log.Debug("Response",
			zap.String("url", current),
			zap.Int("status", resp.StatusCode))

		next, redirect := nextLocation(current, resp)
		if !redirect {
			status := resp.StatusCode
			res.FinalStatus = &status
			res.IsSafe = model.IsSafeStatus(status)
			return res
		}

		if len(res.Hops) == t.opts.MaxHops {
			t.fail(&res, model.ErrRedirectLoopOrTooManyHops, "redirect limit reached")
			return res
		}
		hopIdx := len(res.Hops)
		res.Hops = append(res.Hops, model.RedirectHop{Status: resp.StatusCode, URL: next})
		res.Findings = append(res.Findings, detect.Hop(current, next, hopIdx)...)

		key := util.StripFragment(next)
		if _, seen := visited[key]; seen && t.opts.StrictLoops {
			t.fail(&res, model.ErrRedirectLoop, "location repeats: "+next)
			return res
		}
		visited[key] = struct{}{}
		current = next
	}
}

// nextLocation reports the resolved redirect target for a 3xx response with
// a usable Location header.
func nextLocation(current string, resp *Response) (string, bool) {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || resp.Header == nil {
		return "", false
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", false
	}
	return util.ResolveLocation(current, loc)
}

func (t *Tracer) fail(res *model.CheckResult, kind model.ErrorKind, msg string) {
	res.Error = &kind
	res.ErrorMessage = msg
	res.FinalStatus = nil
	res.IsSafe = false
}

// classify maps a transport error to a kind. An expired overall budget wins
// over whatever the transport reported.
func classify(ctx context.Context, err error) (model.ErrorKind, string) {
	if ctx.Err() != nil {
		return contextKind(ctx), err.Error()
	}
	var te *model.TransportError
	if errors.As(err, &te) {
		return te.Kind, te.Error()
	}
	return model.ErrTransportOther, err.Error()
}

func contextKind(ctx context.Context) model.ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.ErrOverallTimeout
	}
	return model.ErrTransportOther
}
