package app

import (
	"context"
	"fmt"
	"os"

	"moodcanvas/internal/pipeline"
)

// GenerateOptions configure a single manual run.
type GenerateOptions struct {
	// Force regenerates the current bucket even if a painting exists.
	Force bool
	// OverrideTokens replaces the configured override list for this run.
	OverrideTokens string
}

// GenerateOnce runs the pipeline a single time and prints the outcome.
func (a *App) GenerateOnce(ctx context.Context, opts GenerateOptions) error {
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

	runOpts := a.pipelineOptions(opts.Force)
	if opts.OverrideTokens != "" {
		runOpts.Selector.OverrideTokens = opts.OverrideTokens
	}

	result, err := svc.Execute(ctx, runOpts)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result pipeline.Result) {
	fmt.Fprintf(os.Stdout, "status:      %s\n", result.Status)
	fmt.Fprintf(os.Stdout, "bucket:      %s\n", result.BucketLabel)
	if result.TokenID != "" {
		fmt.Fprintf(os.Stdout, "token:       %s (%s)\n", result.TokenID, result.TokenSymbol)
	}
	if result.ObjectKey != "" {
		fmt.Fprintf(os.Stdout, "object key:  %s\n", result.ObjectKey)
	}
	if result.ImageURL != "" {
		fmt.Fprintf(os.Stdout, "image url:   %s\n", result.ImageURL)
	}
	if result.ParamsHash != "" {
		fmt.Fprintf(os.Stdout, "params hash: %s\n", result.ParamsHash)
		fmt.Fprintf(os.Stdout, "seed:        %s\n", result.Seed)
	}
	if result.Warning != "" {
		fmt.Fprintf(os.Stdout, "warning:     %s\n", result.Warning)
	}
}
