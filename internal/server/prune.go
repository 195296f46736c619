package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kilupskalvis/vbs/internal/boardstore"
)

// PruneResult contains the outcome of a prune run.
type PruneResult struct {
	Cutoff time.Time `json:"cutoff"`
	Pruned []string  `json:"pruned"`
}

// PruneBoards removes boards that have not been updated within ttl.
func PruneBoards(ctx context.Context, boards boardstore.Store, ttl time.Duration, now time.Time, logger *slog.Logger) (*PruneResult, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("prune ttl must be positive, got %s", ttl)
	}
	cutoff := now.Add(-ttl)

	pruned, err := boards.PruneBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune boards: %w", err)
	}
	metricBoardsPruned.Add(float64(len(pruned)))

	logger.Info("prune complete", "cutoff", cutoff, "pruned", len(pruned))

	if pruned == nil {
		pruned = []string{}
	}
	return &PruneResult{Cutoff: cutoff, Pruned: pruned}, nil
}

// pruner runs PruneBoards on a fixed interval until stopped.
type pruner struct {
	done chan struct{}
	once sync.Once
}

func startPruner(boards boardstore.Store, ttl, interval time.Duration, logger *slog.Logger, onPrune func(ids []string)) *pruner {
	p := &pruner{done: make(chan struct{})}
	if ttl <= 0 || interval <= 0 {
		return p
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				res, err := PruneBoards(context.Background(), boards, ttl, now, logger)
				if err != nil {
					logger.Error("scheduled prune failed", "error", err)
					continue
				}
				onPrune(res.Pruned)
			case <-p.done:
				return
			}
		}
	}()
	return p
}

func (p *pruner) Stop() {
	p.once.Do(func() { close(p.done) })
}
