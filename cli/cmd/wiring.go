package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/adapter"
	redisadapter "github.com/hoopline/gatekeeper/adapter/redis"
	"github.com/hoopline/gatekeeper/adapter/webhook"
	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/cli/config"
	"github.com/hoopline/gatekeeper/completeness"
	"github.com/hoopline/gatekeeper/depend"
	"github.com/hoopline/gatekeeper/hashtrack"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/lifecycle"
	"github.com/hoopline/gatekeeper/locker"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/metrics"
	"github.com/hoopline/gatekeeper/notify"
	"github.com/hoopline/gatekeeper/rawfeed"
	"github.com/hoopline/gatekeeper/retry"
	"github.com/hoopline/gatekeeper/schedule"
	"github.com/hoopline/gatekeeper/snapshot"
	"github.com/hoopline/gatekeeper/warehouse"
	"github.com/hoopline/gatekeeper/window"
)

// engine is the fully wired validation engine for one CLI invocation.
type engine struct {
	cfg        *config.Config
	ledger     *ledger.SQLLedger
	controller *lifecycle.Controller
	metrics    *metrics.Collector
	logger     *log.Logger

	closers []func() error
}

// close releases engine resources in reverse construction order.
func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", map[string]any{"error": err.Error()})
		}
	}
}

// buildEngine constructs the full collaborator graph from config. The
// returned stage is the validation stage for stageName.
func buildEngine(ctx context.Context, cfg *config.Config, stageName string, strict bool, logger *log.Logger) (*engine, *validationStage, error) {
	sc, err := cfg.Stage(stageName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", classify.ErrConfiguration, err)
	}
	source := sc.Source.Source()
	if err := source.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: stage %s: %v", classify.ErrConfiguration, stageName, err)
	}

	e := &engine{cfg: cfg, logger: logger}
	fail := func(err error) (*engine, *validationStage, error) {
		e.close()
		return nil, nil, err
	}

	if cfg.Warehouse.Path == "" {
		return fail(fmt.Errorf("%w: warehouse.path is required", classify.ErrConfiguration))
	}
	store, err := warehouse.OpenSQLite(cfg.Warehouse.Path)
	if err != nil {
		return fail(fmt.Errorf("open warehouse: %w", err))
	}
	e.closers = append(e.closers, store.Close)

	if cfg.Ledger.Path == "" {
		return fail(fmt.Errorf("%w: ledger.path is required", classify.ErrConfiguration))
	}
	led, err := ledger.OpenSQLite(cfg.Ledger.Path)
	if err != nil {
		return fail(fmt.Errorf("open ledger: %w", err))
	}
	e.ledger = led
	e.closers = append(e.closers, led.Close)

	// Schedule and raw feed live in the warehouse database.
	sched := schedule.NewSQLProvider(store.DB())
	raw := rawfeed.NewSQLSource(store.DB())

	checker := completeness.NewChecker(store, sched, led, logger)
	validator := window.NewValidator(checker, store, raw, source, logger)
	if len(cfg.Window.Sizes) > 0 {
		validator = validator.WithWindowSizes(cfg.Window.Sizes)
	}
	if cfg.Window.ComputeThreshold > 0 {
		validator = validator.WithComputeThreshold(cfg.Window.ComputeThreshold)
	}
	classifier := classify.NewClassifier(raw, logger)

	registry := depend.NewRegistry()
	for _, name := range cfg.StageNames() {
		stage := cfg.Stages[name]
		for _, up := range stage.Upstreams {
			if err := registry.Register(name, up.Rule()); err != nil {
				return fail(fmt.Errorf("%w: %v", classify.ErrConfiguration, err))
			}
		}
		if stage.Source.Table != "" {
			if err := registry.BindSource(name, stage.Source.Source()); err != nil {
				return fail(fmt.Errorf("%w: %v", classify.ErrConfiguration, err))
			}
		}
	}
	resolver := depend.NewResolver(registry, led, store, logger)
	if strict {
		resolver = resolver.WithStrict()
	}

	var locks locker.Locker
	if url := cfg.Redis.URL(); url != "" {
		rl, err := locker.NewRedisLocker(url)
		if err != nil {
			return fail(err)
		}
		locks = rl
	} else {
		// Single-process fallback for local runs without Redis.
		locks = locker.NewMemoryLocker()
	}

	var hashes *hashtrack.Tracker
	if cfg.HashStore.Path != "" {
		hs, err := hashtrack.OpenSQLite(cfg.HashStore.Path)
		if err != nil {
			return fail(fmt.Errorf("open hash store: %w", err))
		}
		e.closers = append(e.closers, hs.Close)
		hashes = hashtrack.NewTracker(hs, cfg.HashStore.PrimarySource, logger)
	}

	signals, err := buildSignals(cfg)
	if err != nil {
		return fail(err)
	}
	if signals != nil {
		e.closers = append(e.closers, signals.Close)
	}

	var alerts notify.Notifier
	if cfg.Alerts.URL != "" {
		wn, err := notify.NewWebhook(cfg.Alerts.URL, cfg.Alerts.Headers)
		if err != nil {
			return fail(err)
		}
		alerts = wn
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	policy := retry.NewPolicy()
	if cfg.Retry.MaxRetries > 0 {
		policy.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelay.Duration > 0 {
		policy.BaseDelay = cfg.Retry.BaseDelay.Duration
	}

	e.metrics = metrics.NewCollector(stageName, "")

	controller, err := lifecycle.NewController(lifecycle.Config{
		Locks:             locks,
		Runs:              led,
		Failures:          led,
		Depends:           resolver,
		Hashes:            hashes,
		Signals:           signals,
		Alerts:            alerts,
		Archive:           archive,
		Metrics:           e.metrics,
		Retry:             policy,
		StaleAfter:        cfg.Locking.StaleAfter.Duration,
		HeartbeatInterval: cfg.Locking.HeartbeatInterval.Duration,
		NoDataExpected: func(ctx context.Context, asOf time.Time) bool {
			season, err := sched.SeasonFor(ctx, asOf)
			if err != nil {
				return false
			}
			if !season.Contains(asOf) {
				return true
			}
			return completeness.IsBootstrapMode(asOf, season.Start, 0)
		},
		Logger: logger,
	})
	if err != nil {
		return fail(err)
	}
	e.controller = controller

	maxWindow := 0
	for _, n := range validatorSizes(cfg) {
		if n > maxWindow {
			maxWindow = n
		}
	}

	stage := &validationStage{
		name:       stageName,
		upstreams:  nil, // all registered rules for the stage
		sourceName: sc.Source.Name,
		source:     source,
		output:     sc.OutputLocation,
		store:      store,
		checker:    checker,
		validator:  validator,
		classifier: classifier,
		probeRaw:   sc.RawFeed,
		maxWindow:  maxWindow,
		logger:     logger,
	}
	if stage.sourceName == "" {
		stage.sourceName = source.Table
	}
	return e, stage, nil
}

func validatorSizes(cfg *config.Config) []int {
	if len(cfg.Window.Sizes) > 0 {
		return cfg.Window.Sizes
	}
	return []int{5, 10, 15, 20}
}

// buildSignals constructs the completion-signal adapter, or nil when
// signaling is disabled.
func buildSignals(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Signal.Type {
	case "", "none":
		return nil, nil
	case "redis":
		url := cfg.Signal.URL
		if url == "" {
			url = cfg.Redis.URL()
		}
		c := redisadapter.Config{
			URL:     url,
			Channel: cfg.Signal.Channel,
			Timeout: cfg.Signal.Timeout.Duration,
		}
		if cfg.Signal.Retries != nil {
			c.Retries = *cfg.Signal.Retries
		}
		return redisadapter.New(c)
	case "webhook":
		c := webhook.Config{
			URL:     cfg.Signal.URL,
			Headers: cfg.Signal.Headers,
			Timeout: cfg.Signal.Timeout.Duration,
		}
		if cfg.Signal.Retries != nil {
			c.Retries = *cfg.Signal.Retries
		}
		return webhook.New(c)
	default:
		return nil, fmt.Errorf("%w: unknown signal type %q", classify.ErrConfiguration, cfg.Signal.Type)
	}
}

// buildArchive constructs the run-report publisher, or nil when archiving
// is disabled.
func buildArchive(ctx context.Context, cfg *config.Config) (snapshot.Publisher, error) {
	switch cfg.Snapshot.Backend {
	case "", "none":
		return nil, nil
	case "fs":
		return snapshot.NewFSPublisher(cfg.Snapshot.Path)
	case "s3":
		return snapshot.NewS3Publisher(ctx, snapshot.S3Config{
			Bucket:       cfg.Snapshot.Bucket,
			Prefix:       cfg.Snapshot.Prefix,
			Region:       cfg.Snapshot.Region,
			Endpoint:     cfg.Snapshot.Endpoint,
			UsePathStyle: cfg.Snapshot.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("%w: unknown snapshot backend %q", classify.ErrConfiguration, cfg.Snapshot.Backend)
	}
}
