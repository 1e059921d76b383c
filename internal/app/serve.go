package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"moodcanvas/internal/api"
	"moodcanvas/internal/archive"
	"moodcanvas/internal/storage"
)

// Serve runs the archive HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; serving from object listings only")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var index storage.PaintingStore
	if store != nil {
		index = store
	}

	engine := archive.NewQueryEngine(index, a.newObjectStore(), archive.QueryEngineOptions{
		DefaultLimit:  a.Config.Archive.DefaultLimit,
		MaxLimit:      a.Config.Archive.MaxLimit,
		ListOverfetch: a.Config.Archive.ListOverfetch,
	}, a.Logger)

	listCache := a.newCache(ctx)
	if listCache != nil {
		defer listCache.Close()
	}

	var pages api.PageCache
	if listCache != nil {
		pages = listCache
	}

	server := api.NewServer(api.ServerConfig{
		Addr:            a.Config.API.Addr,
		RateLimitRPS:    a.Config.API.RateLimitRPS,
		RateLimitBurst:  a.Config.API.RateLimitBurst,
		ShutdownTimeout: a.Config.API.ShutdownTimeout,
	}, engine, pages, a.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down http server")
	if err := server.Shutdown(context.Background()); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
