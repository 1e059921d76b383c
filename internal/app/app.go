// Package app aggregates configuration and shared wiring for the CLI
// commands.
package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/archive"
	"moodcanvas/internal/cache"
	"moodcanvas/internal/config"
	"moodcanvas/internal/imagegen"
	"moodcanvas/internal/market"
	"moodcanvas/internal/objstore"
	"moodcanvas/internal/pipeline"
	"moodcanvas/internal/prompt"
	"moodcanvas/internal/scheduler"
	"moodcanvas/internal/selector"
	"moodcanvas/internal/storage"
)

// App is the application handle CLI commands run against.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs an application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newObjectStore() *objstore.HTTPStore {
	cfg := a.Config.ObjectStore
	return objstore.NewHTTPStore(objstore.HTTPOptions{
		BaseURL:       cfg.BaseURL,
		Bucket:        cfg.Bucket,
		APIKey:        cfg.APIKey,
		PublicBaseURL: cfg.PublicBaseURL,
		Timeout:       cfg.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSnapshotFetcher() *market.SnapshotFetcher {
	global := a.newGlobalClient()
	sentiment := market.NewFearGreed(market.SentimentOptions{
		BaseURL: a.Config.Sentiment.BaseURL,
		Timeout: a.Config.Sentiment.RequestTimeout,
	}, a.Logger)
	return market.NewSnapshotFetcher(global, sentiment, a.Logger)
}

func (a *App) newGlobalClient() *market.Global {
	cfg := a.Config.MarketData
	return market.NewGlobal(market.GlobalOptions{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newGenerator() imagegen.Generator {
	if a.Config.ImageGen.Mock {
		a.Logger.Warn().Msg("image generation mocked; producing placeholder payloads")
		return &imagegen.Mock{Payload: []byte("mock-painting")}
	}
	return imagegen.NewStability(imagegen.StabilityOptions{
		BaseURL: a.Config.ImageGen.BaseURL,
		APIKey:  a.Config.ImageGen.APIKey,
		Timeout: a.Config.ImageGen.RequestTimeout,
	}, a.Logger)
}

func (a *App) newWriter(index storage.PaintingStore) *archive.Writer {
	return archive.NewWriter(a.newObjectStore(), index, a.Logger)
}

func (a *App) newCache(ctx context.Context) *cache.Cache {
	if !a.Config.Cache.Enabled {
		return nil
	}
	c, err := cache.New(ctx, cache.Options{
		Addr: a.Config.Cache.Addr,
		TTL:  a.Config.Cache.TTL,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("redis unavailable; running without list cache")
		return nil
	}
	return c
}

// newPipeline wires the full painting pipeline. store may be nil, in which
// case the run proceeds without persistence or idempotency.
func (a *App) newPipeline(store *storage.Store, listCache *cache.Cache) *pipeline.Service {
	global := a.newGlobalClient()

	var tokenStore selector.TokenStore
	var snapStore storage.SnapshotStore
	var paintingStore storage.PaintingStore
	var categories pipeline.CategoryLookup
	if store != nil {
		tokenStore = store
		snapStore = store
		paintingStore = store
		categories = store
	}

	sel := selector.New(global, global, global, tokenStore, a.Logger)
	writer := a.newWriter(paintingStore)

	svc := pipeline.New(sel, a.newSnapshotFetcher(), snapStore, paintingStore, categories, a.newGenerator(), writer, a.Logger)
	if listCache != nil {
		svc.WithInvalidator(listCache)
	}
	return svc
}

func (a *App) pipelineOptions(force bool) pipeline.Options {
	cfg := a.Config
	return pipeline.Options{
		Interval: cfg.Scheduler.Interval,
		Selector: selector.Options{
			OverrideTokens:          cfg.Selector.OverrideTokens,
			TrendingLimit:           cfg.Selector.TrendingLimit,
			ExcludeRecentlySelected: cfg.Selector.ExcludeRecentlySelected,
			RecencyWindow:           cfg.Selector.RecencyWindow,
		},
		Prompt: prompt.Options{
			Width:  cfg.ImageGen.Width,
			Height: cfg.ImageGen.Height,
			Format: cfg.ImageGen.Format,
		},
		Model:          cfg.ImageGen.Model,
		ReferenceImage: cfg.ImageGen.ReferenceImage,
		Force:          force,
	}
}

// RunOptions configure the long-running scheduler mode.
type RunOptions struct {
	RunOnStart bool
}

// Run executes the scheduled painting loop until interrupted.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; index and idempotency disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	listCache := a.newCache(ctx)
	if listCache != nil {
		defer listCache.Close()
	}

	svc := a.newPipeline(store, listCache)
	runOpts := a.pipelineOptions(false)

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
		RunOnStart:    opts.RunOnStart,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting painting loop")

	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, tickErr := svc.Execute(ctx, runOpts)
		return tickErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("painting loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("painting loop stopped")
	return nil
}
