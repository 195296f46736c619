// Command vbs-server runs the retrieval gateway HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kilupskalvis/vbs/internal/app"
	"github.com/kilupskalvis/vbs/internal/config"
)

func main() {
	project := flag.String("project", os.Getenv("VBS_PROJECT"), "Project directory containing .vbs (default: search upward from cwd)")
	listen := flag.String("listen", os.Getenv("VBS_LISTEN"), "Listen address (default: server.addr from config)")
	searchURL := flag.String("search-url", os.Getenv("VBS_SEARCH_URL"), "Search backend URL override")
	evalURL := flag.String("eval-url", os.Getenv("VBS_EVAL_URL"), "Evaluation server URL override")
	accessToken := flag.String("access-token", os.Getenv("VBS_ACCESS_TOKEN"), "Bearer token required on /api/ routes")
	adminToken := flag.String("admin-token", os.Getenv("VBS_ADMIN_TOKEN"), "Admin API token")
	logLevel := flag.String("log-level", envOrDefault("VBS_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("VBS_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("VBS_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("VBS_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("VBS_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on submission")
	pruneInterval := flag.String("prune-interval", os.Getenv("VBS_PRUNE_INTERVAL"), "How often idle boards are pruned, 0 disables (default: server.prune_interval from config)")
	flag.Parse()

	logger := app.NewLogger(*logLevel, *logFormat, os.Stdout)

	var (
		cfg *config.Config
		err error
	)
	if *project != "" {
		cfg, err = config.LoadFrom(filepath.Join(*project, config.VBSDir))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *listen != "" {
		cfg.Server.Addr = *listen
	}
	if *searchURL != "" {
		cfg.SearchURL = *searchURL
	}
	if *evalURL != "" {
		cfg.EvalURL = *evalURL
	}
	if *accessToken != "" {
		cfg.Server.AccessToken = *accessToken
	}
	if *adminToken != "" {
		cfg.Server.AdminToken = *adminToken
	}
	if *webhookURLs != "" {
		cfg.Server.Webhooks = append(cfg.Server.Webhooks, strings.Split(*webhookURLs, ",")...)
	}
	if *pruneInterval != "" {
		d, err := time.ParseDuration(*pruneInterval)
		if err != nil || d < 0 {
			logger.Error("invalid prune interval", "value", *pruneInterval)
			os.Exit(1)
		}
		cfg.Server.PruneInterval.Duration = d
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open project", "error", err)
		os.Exit(1)
	}

	err = a.Serve(ctx, cfg.Server.Addr, app.TLS{CertFile: *tlsCert, KeyFile: *tlsKey})
	if cerr := a.Close(); cerr != nil {
		logger.Error("close stores", "error", cerr)
	}
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
