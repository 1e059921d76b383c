package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"moodcanvas/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// Show prints recent paintings from the index.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show paintings")
	}
	if closeStore != nil {
		defer closeStore()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.Archive.DefaultLimit
	}

	paintings, err := store.ListPaintings(ctx, storage.ListQuery{Limit: limit})
	if err != nil {
		return err
	}
	if len(paintings) == 0 {
		fmt.Fprintln(os.Stdout, "no paintings found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBucket\tID\tHash\tSize\tURL")

	for _, p := range paintings {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%s\n",
			p.Timestamp.UTC().Format(time.RFC3339),
			p.Bucket.UTC().Format("20060102T15"),
			p.ID,
			shortHash(p.ParamsHash),
			p.FileSize,
			p.ImageURL,
		)
	}

	writer.Flush()
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return strings.TrimSpace(hash)
}
