package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/repeater/internal/auth"
	"github.com/torosent/repeater/internal/collection"
	"github.com/torosent/repeater/internal/config"
	"github.com/torosent/repeater/internal/dashboard"
	"github.com/torosent/repeater/internal/httpclient"
	"github.com/torosent/repeater/internal/metrics"
	"github.com/torosent/repeater/internal/output"
	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/runner"
	"github.com/torosent/repeater/internal/telemetry"
	"github.com/torosent/repeater/internal/threshold"
	"github.com/torosent/repeater/internal/tracing"
	"github.com/torosent/repeater/internal/variables"
)

const (
	baseRetryDelay  = 100 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var (
	errThresholdsFailed = errors.New("one or more thresholds failed")
	errRunCancelled     = errors.New("run cancelled")
)

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(exitCode(err, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRunCancelled):
		return 130
	case errors.Is(err, errThresholdsFailed):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	coll, err := loadCollection(cfg)
	if err != nil {
		return err
	}
	resolver, err := coll.Resolver(cfg.Environment, variables.FromMap(cfg.Variables))
	if err != nil {
		return err
	}

	validated, err := repetition.Validate(cfg.Repetition(), coll, resolver, nil)
	if err != nil {
		return describeConfigError(err)
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	client := httpclient.NewClient(cfg.Timeout)
	registry := auth.NewRegistry(client, auth.DefaultRefreshBeforeExpiry)
	defer registry.Close()

	var requester runner.Requester = newRequester(client, registry, cfg.Timeout, tp.ShouldPropagate())
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, telemetry.NewFailureLogger(logger))
	}
	if cfg.Retries > 0 {
		requester = runner.WithRetry(requester, newRetryPolicy(cfg.Retries))
	}

	promMetrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv, err := promMetrics.Serve(cfg.MetricsAddr, logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dispatcher := runner.NewDispatcher(runner.Options{
		MaxConcurrency: validated.MaxConcurrency,
		Delay:          validated.Delay,
		Requester:      requester,
		Variables:      resolver,
		Tracer:         tp.Tracer(),
		Logger:         &logger,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	collector := metrics.NewCollector()
	runHandle := dispatcher.Start(runCtx, validated.Plan, validated.Request)
	promMetrics.TrackInFlight(runHandle.InFlight)

	var updates []func(output.RunStatistics)

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunInfo{
			RunID:          runHandle.ID(),
			Request:        cfg.Request,
			Target:         describeTarget(validated.Request, resolver),
			Mode:           validated.Config.Mode.String(),
			Environment:    cfg.Environment,
			Planned:        runHandle.Planned(),
			MaxConcurrency: validated.MaxConcurrency,
			Delay:          validated.Delay,
		}, cancelRun)
		if err != nil {
			cancelRun()
			runHandle.Wait()
			return err
		}
		dash.Start()
		updates = append(updates, dash.Update)
	}

	var bar *output.ProgressBar
	if cfg.Progress && !cfg.Dashboard && !cfg.JSONOutput {
		bar = output.NewProgressBar(stderr, cfg.Request, runHandle.Planned())
		updates = append(updates, bar.Update)
	}

	observer := output.NewObserver(runHandle.Planned(), output.ObserverOptions{
		Start:      runHandle.StartedAt(),
		Dispatched: runHandle.Dispatched,
		OnResult: func(r repetition.Result) {
			collector.Record(r)
			promMetrics.Observe(r)
		},
		OnUpdate: func(stats output.RunStatistics) {
			for _, update := range updates {
				update(stats)
			}
		},
	})
	observer.Observe(runHandle.Results())
	summary := runHandle.Wait()

	if bar != nil {
		bar.Stop()
	}
	if dash != nil {
		dash.Stop()
	}

	stats := collector.Stats(summary.Duration)
	thresholdResults := threshold.NewEvaluator(thresholds).Evaluate(stats)

	exports, err := writeExports(cfg, validated, runHandle.Collected(), logger)
	if err != nil {
		return err
	}

	report := output.NewRunReport(cfg.Request, validated.Config.Mode.String(), summary, stats, thresholdResults)
	report.Exports = exports
	statusOut := stdout
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
		statusOut = stderr
	} else {
		output.PrintReport(stdout, report)
	}
	output.PrintStatus(statusOut, summary)

	switch {
	case summary.Cancelled:
		return errRunCancelled
	case !threshold.AllPassed(thresholdResults):
		return errThresholdsFailed
	}
	return nil
}

func loadCollection(cfg *config.Config) (*collection.Collection, error) {
	if cfg.HARFile != "" {
		return collection.LoadHAR(cfg.HARFile, cfg.HAROptions())
	}
	return collection.LoadFile(cfg.Collection)
}

// writeExports saves the requested artifacts and returns their paths.
func writeExports(cfg *config.Config, validated *repetition.Validated, results []repetition.Result, logger zerolog.Logger) ([]string, error) {
	var paths []string
	if cfg.Report {
		var keys []string
		if len(validated.Records) > 0 {
			keys = validated.Records[0].Keys()
		}
		path, err := output.SaveCSVReport(cfg.OutputDir, cfg.Request, cfg.Environment, time.Now(), keys, results)
		if err != nil {
			return nil, fmt.Errorf("csv report: %w", err)
		}
		paths = append(paths, path)
	}

	exporter := output.Exporter{Dir: cfg.OutputDir}
	if cfg.ExportBodies {
		written, err := exporter.ExportBodies(results)
		if err != nil {
			return nil, fmt.Errorf("export bodies: %w", err)
		}
		paths = append(paths, written...)
	}
	if cfg.ExportLogs {
		written, err := exporter.ExportLogs(results)
		if err != nil {
			return nil, fmt.Errorf("export logs: %w", err)
		}
		paths = append(paths, written...)
	}
	if len(paths) > 0 {
		logger.Info().Int("files", len(paths)).Str("dir", cfg.OutputDir).Msg("exports written")
	}
	return paths, nil
}

// describeConfigError appends the code to a repetition config error so it can
// be matched in scripts. The error still unwraps to the code.
func describeConfigError(err error) error {
	var cerr *repetition.ConfigError
	if errors.As(err, &cerr) {
		return fmt.Errorf("%w (%s)", err, cerr.Code)
	}
	return err
}

// describeTarget renders the base request line with the ambient variables.
// Per-record placeholders stay visible.
func describeTarget(tmpl request.Template, resolver *variables.Resolver) string {
	vars := resolver.EffectiveVariables()
	return tmpl.Resolve(func(s string) string { return resolver.ReplaceTemplates(s, vars) }).String()
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		RetryStatus: func(code int) bool {
			return code == http.StatusTooManyRequests || code >= 500
		},
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}

			var httpErr *runner.HTTPError
			if errors.As(err, &httpErr) {
				if httpErr.StatusCode == http.StatusTooManyRequests {
					return true
				}
				return httpErr.StatusCode >= 500
			}

			return true
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
