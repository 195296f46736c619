package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// Paths locates the catalog files on disk. Only GroupedIndex is required.
type Paths struct {
	GroupedIndex  string
	VideoMetadata string
	WatchIndex    string
}

// Catalog bundles the reference data passed to everything that reads frames.
type Catalog struct {
	Index    *GroupedIndex
	Metadata *VideoMetadata
	Watch    *WatchIndex
}

// Load reads all catalog files concurrently. A missing metadata or watch
// index file leaves that component empty.
func Load(ctx context.Context, paths Paths, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if paths.GroupedIndex == "" {
		return nil, fmt.Errorf("grouped index path is required")
	}

	cat := &Catalog{
		Metadata: NewVideoMetadata(nil),
		Watch:    NewWatchIndex(nil),
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		idx, err := LoadGroupedIndex(paths.GroupedIndex)
		if err != nil {
			return err
		}
		cat.Index = idx
		return nil
	})

	if paths.VideoMetadata != "" {
		g.Go(func() error {
			meta, err := LoadVideoMetadata(paths.VideoMetadata)
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("video metadata not found, continuing without it", "path", paths.VideoMetadata)
				return nil
			}
			if err != nil {
				return err
			}
			cat.Metadata = meta
			return nil
		})
	}

	if paths.WatchIndex != "" {
		g.Go(func() error {
			watch, err := LoadWatchIndex(paths.WatchIndex)
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("watch index not found, continuing without it", "path", paths.WatchIndex)
				return nil
			}
			if err != nil {
				return err
			}
			cat.Watch = watch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("catalog loaded",
		"collections", len(cat.Index.Collections()),
		"keyframes", cat.Index.TotalFrames(),
		"metadata_records", cat.Metadata.Len(),
		"watch_entries", cat.Watch.Len(),
	)
	return cat, nil
}
