// Package app opens the stores and clients described by a project
// configuration and runs the HTTP API on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kilupskalvis/vbs/internal/boardstore"
	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/kilupskalvis/vbs/internal/config"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/kilupskalvis/vbs/internal/search"
	"github.com/kilupskalvis/vbs/internal/server"
	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. Format "text" renders colored
// human-readable lines, anything else JSON.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "text" {
		handler = tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.TimeOnly})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	return slog.New(handler)
}

// App holds everything the API needs, opened from one configuration.
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Search  *search.Client
	Eval    evaluation.Client
	Boards  *boardstore.BboltStore
	History *history.Store

	logger *slog.Logger
}

// Open loads the catalog and opens the board store and submission log.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cat, err := catalog.Load(ctx, catalog.Paths{
		GroupedIndex:  cfg.Resolve(cfg.GroupedIndex),
		VideoMetadata: cfg.Resolve(cfg.VideoMetadata),
		WatchIndex:    cfg.Resolve(cfg.WatchIndex),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	boards, err := boardstore.NewBboltStore(cfg.BoardsPath())
	if err != nil {
		return nil, fmt.Errorf("open board store: %w", err)
	}

	hist, err := history.New(cfg.HistoryPath())
	if err != nil {
		boards.Close()
		return nil, fmt.Errorf("open submission history: %w", err)
	}

	return &App{
		Config:  cfg,
		Catalog: cat,
		Search:  search.NewClient(cfg.SearchURL, searchTimeout),
		Eval:    NewEvalClient(cfg),
		Boards:  boards,
		History: hist,
		logger:  logger,
	}, nil
}

// HTTP timeouts of the outbound clients. The evaluation timeout is longer
// than the submit watchdog so late responses are still recorded.
const (
	searchTimeout = 30 * time.Second
	evalTimeout   = 2 * time.Minute
)

// NewEvalClient returns the evaluation client with login and listing retried.
func NewEvalClient(cfg *config.Config) evaluation.Client {
	return evaluation.NewRetryClient(evaluation.NewHTTPClient(cfg.EvalURL, evalTimeout), nil)
}

// Deps returns the collaborators for server.Handler.
func (a *App) Deps() server.Deps {
	return server.Deps{
		Catalog: a.Catalog,
		Search:  a.Search,
		Eval:    a.Eval,
		Boards:  a.Boards,
		History: a.History,
	}
}

// ServerConfig maps the project configuration onto server settings.
// Webhook URLs become a notifier.
func (a *App) ServerConfig() *server.ServerConfig {
	c := a.Config
	sc := server.DefaultServerConfig()
	sc.AccessToken = c.Server.AccessToken
	sc.AdminToken = c.Server.AdminToken
	sc.RequestsPerMinute = c.Server.RequestsPerMinute
	sc.FPS = c.FPS
	sc.TopK = c.TopK
	sc.WindowBefore = c.WindowBefore
	sc.WindowAfter = c.WindowAfter
	sc.SubmitTimeout = c.SubmitTimeout.Duration
	sc.BoardTTL = c.Server.BoardTTL.Duration
	sc.PruneInterval = c.Server.PruneInterval.Duration

	if urls := TrimList(c.Server.Webhooks); len(urls) > 0 {
		sc.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: urls}, a.logger)
		a.logger.Info("webhooks configured", "count", len(urls))
	}
	return sc
}

// Close releases the stores.
func (a *App) Close() error {
	return errors.Join(a.Boards.Close(), a.History.Close())
}

// TrimList drops blank entries and surrounding whitespace.
func TrimList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TLS names the certificate pair used by Serve. Both empty serves plain HTTP.
type TLS struct {
	CertFile string
	KeyFile  string
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context, addr string, tls TLS) error {
	h, cleanup := server.Handler(a.Deps(), a.ServerConfig(), a.logger)
	defer cleanup()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting vbs server", "listen", addr, "project", a.Config.VBSPath())
		var err error
		if tls.CertFile != "" && tls.KeyFile != "" {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
