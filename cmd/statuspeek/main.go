package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/selimozcann/statuspeek/internal/banner"
	"github.com/selimozcann/statuspeek/internal/config"
	"github.com/selimozcann/statuspeek/internal/httpclient"
	"github.com/selimozcann/statuspeek/internal/logger"
	"github.com/selimozcann/statuspeek/internal/metrics"
	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/output"
	"github.com/selimozcann/statuspeek/internal/runner"
	"github.com/selimozcann/statuspeek/internal/statuscolor"
	"github.com/selimozcann/statuspeek/internal/trace"
)

const version = "v0.3.0"

type stringList []string

type options struct {
	urls          stringList
	file          string
	configPath    string
	maxHops       int
	budget        time.Duration
	timeout       time.Duration
	threads       int
	rateLimit     int
	method        string
	insecure      bool
	strictLoops   bool
	headers       stringList
	cookie        string
	proxy         string
	retries       int
	outputPath    string
	pretty        bool
	summary       bool
	silent        bool
	verbose       bool
	metricsListen string

	args []string
	// set holds the names of flags given explicitly on the command line.
	set map[string]bool
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	defaults := config.Default()

	var opts options
	fs.Var(&opts.urls, "u", "Target URL (repeatable; positional arguments are accepted too)")
	fs.StringVar(&opts.file, "f", "", "File with one URL per line (stdin when no URL is given)")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.IntVar(&opts.maxHops, "max-hops", defaults.Resolver.MaxHops, "Maximum redirects followed per URL")
	fs.DurationVar(&opts.budget, "budget", defaults.Resolver.Budget, "Overall time budget per URL")
	fs.DurationVar(&opts.timeout, "timeout", defaults.HTTP.Timeout, "Per-request timeout")
	fs.IntVar(&opts.threads, "t", defaults.Runner.Threads, "Threads")
	fs.IntVar(&opts.rateLimit, "rl", defaults.Runner.RateLimit, "Global rate limit (resolutions started per second)")
	fs.StringVar(&opts.method, "method", defaults.HTTP.Method, "Request method: head (GET fallback) or get")
	fs.BoolVar(&opts.insecure, "insecure", false, "Skip TLS verification")
	fs.BoolVar(&opts.strictLoops, "strict-loops", false, "Stop as soon as a location repeats")
	fs.Var(&opts.headers, "H", "Extra HTTP header (repeatable)")
	fs.StringVar(&opts.cookie, "cookie", "", "Cookie header")
	fs.StringVar(&opts.proxy, "proxy", "", "HTTP(S) proxy URL")
	fs.IntVar(&opts.retries, "retries", defaults.HTTP.Retries, "Retry count for network errors and 5xx")
	fs.StringVar(&opts.outputPath, "o", "", "JSONL output file (stdout when empty)")
	fs.BoolVar(&opts.pretty, "pretty", false, "Coloured human-readable output instead of JSONL")
	fs.BoolVar(&opts.summary, "summary", false, "Print batch summary to stderr")
	fs.BoolVar(&opts.silent, "silent", false, "Suppress the banner")
	fs.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	fs.StringVar(&opts.metricsListen, "metrics-listen", "", "Expose Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.args = fs.Args()
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.set["max-hops"] {
		cfg.Resolver.MaxHops = opts.maxHops
	}
	if opts.set["budget"] {
		cfg.Resolver.Budget = opts.budget
	}
	if opts.set["strict-loops"] {
		cfg.Resolver.StrictLoops = opts.strictLoops
	}
	if opts.set["timeout"] {
		cfg.HTTP.Timeout = opts.timeout
	}
	if opts.set["method"] {
		cfg.HTTP.Method = strings.ToLower(opts.method)
	}
	if opts.set["insecure"] {
		cfg.HTTP.Insecure = opts.insecure
	}
	if opts.set["cookie"] {
		cfg.HTTP.Cookie = opts.cookie
	}
	if opts.set["proxy"] {
		cfg.HTTP.Proxy = opts.proxy
	}
	if opts.set["retries"] {
		cfg.HTTP.Retries = opts.retries
	}
	if opts.set["t"] {
		cfg.Runner.Threads = opts.threads
	}
	if opts.set["rl"] {
		cfg.Runner.RateLimit = opts.rateLimit
	}
	if opts.set["metrics-listen"] {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = opts.metricsListen
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	headers, err := toHeader(cfg.HTTP.Headers, opts.headers)
	if err != nil {
		return err
	}
	proxy, err := httpclient.ParseProxy(cfg.HTTP.Proxy)
	if err != nil {
		return err
	}

	targets, err := readTargets(opts, stdin)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no targets: pass URLs as arguments, with -u, -f or on stdin")
	}

	logs, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	if opts.verbose {
		logs.SetLevel(config.LogLevelDebug)
	}
	defer func() { _ = logs.Sync() }()
	log := logs.With(zap.String("run_id", uuid.NewString()))

	if !opts.silent {
		banner.PrintBanner(stderr, version)
	}

	client := httpclient.New(httpclient.Config{
		Timeout:   cfg.HTTP.Timeout,
		Proxy:     proxy,
		Headers:   headers,
		Cookie:    cfg.HTTP.Cookie,
		UserAgent: cfg.HTTP.UserAgent,
		Insecure:  cfg.HTTP.Insecure,
		Retries:   cfg.HTTP.Retries,
	})
	transport := httpclient.NewTransport(client, httpclient.Method(cfg.HTTP.Method), log)
	tracer := trace.New(transport, trace.Options{
		MaxHops:     cfg.Resolver.MaxHops,
		Budget:      cfg.Resolver.Budget,
		StrictLoops: cfg.Resolver.StrictLoops,
	}, log)

	if cfg.Metrics.Enabled {
		collector := metrics.New(cfg.Metrics.Namespace, log)
		tracer.WithObserver(collector)
		server, err := metrics.StartServer(true, cfg.Metrics.Listen, cfg.Metrics.Path, collector, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.ShutdownWithContext(shutdownCtx)
		}()
	}

	out := stdout
	if opts.outputPath != "" {
		f, err := createOutput(opts.outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	emit, flush := newEmitter(out, opts.pretty)
	sink := newOrderedSink(emit)
	pool := runner.New(runner.Config{
		Threads:   cfg.Runner.Threads,
		RateLimit: cfg.Runner.RateLimit,
		OnResult:  sink.add,
	}, tracer, log)

	log.Info("Starting batch",
		zap.Int("targets", len(targets)),
		zap.Int("threads", cfg.Runner.Threads),
		zap.Int("max_hops", cfg.Resolver.MaxHops),
		zap.Duration("budget", cfg.Resolver.Budget))

	start := time.Now()
	results := pool.Run(ctx, targets)
	if err := errors.Join(sink.err, flush()); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	summary := output.BuildSummary(results)
	log.Info("Batch finished",
		zap.Int("total", summary.Total),
		zap.Int("safe", summary.Safe),
		zap.Int("errors", summary.Errors),
		zap.Duration("elapsed", time.Since(start)))

	if opts.summary {
		printSummary(stderr, summary)
	}
	return nil
}

// newEmitter returns the per-result writer and a final flush.
func newEmitter(w io.Writer, pretty bool) (func(model.CheckResult) error, func() error) {
	if pretty {
		return func(res model.CheckResult) error {
			statuscolor.PrintResult(w, res)
			return nil
		}, func() error { return nil }
	}
	jw := output.NewJSONLWriter(w)
	return jw.Write, jw.Close
}

// orderedSink releases results in input order as soon as every earlier
// result is in. Runner serializes OnResult calls, so no locking is needed.
type orderedSink struct {
	emit    func(model.CheckResult) error
	pending map[int]model.CheckResult
	next    int
	err     error
}

func newOrderedSink(emit func(model.CheckResult) error) *orderedSink {
	return &orderedSink{emit: emit, pending: make(map[int]model.CheckResult)}
}

func (s *orderedSink) add(idx int, res model.CheckResult) {
	s.pending[idx] = res
	for {
		r, ok := s.pending[s.next]
		if !ok {
			return
		}
		delete(s.pending, s.next)
		s.next++
		if s.err == nil {
			s.err = s.emit(r)
		}
	}
}

func readTargets(opts options, stdin io.Reader) ([]string, error) {
	targets := append([]string(nil), opts.urls...)
	targets = append(targets, opts.args...)

	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL file %q: %w", opts.file, err)
		}
		defer f.Close()
		lines, err := readLines(f)
		if err != nil {
			return nil, fmt.Errorf("read URL file %q: %w", opts.file, err)
		}
		targets = append(targets, lines...)
	}

	if len(targets) == 0 && stdin != nil {
		lines, err := readLines(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		targets = append(targets, lines...)
	}
	return targets, nil
}

// readLines returns the non-blank lines of r. Lines starting with # are
// comments.
func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	var entries []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}

func toHeader(base map[string]string, extra stringList) (http.Header, error) {
	hdr := make(http.Header)
	for k, v := range base {
		hdr.Set(k, v)
	}
	for _, h := range extra {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid header %q (expected Key: Value)", h)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("invalid header %q (empty key)", h)
		}
		hdr.Add(key, value)
	}
	return hdr, nil
}

func createOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

func printSummary(w io.Writer, s output.Summary) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, bold.Sprint("Summary"))
	fmt.Fprintf(w, "  total=%d safe=%d redirected=%d cross_site=%d errors=%d\n",
		s.Total, s.Safe, s.Redirected, s.CrossSite, s.Errors)
	for _, kind := range s.ErrorKinds() {
		fmt.Fprintf(w, "  %s: %d\n", statuscolor.Gray(kind), s.ByError[kind])
	}
}

func (l *stringList) String() string {
	return strings.Join(*l, "; ")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}
