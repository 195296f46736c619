package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vbs/internal/app"
	"github.com/kilupskalvis/vbs/internal/server"
	"github.com/spf13/cobra"
)

var (
	serverListen      string
	serverTLSCert     string
	serverTLSKey      string
	serverWebhookURLs string

	serverAdminURL   string
	serverAdminToken string
	serverPruneTTL   time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the vbs HTTP API",
	Long:  "Commands for running and administering the vbs HTTP API.",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the vbs HTTP API",
	Long: `Start the vbs HTTP API for the current project.

Boards are stored in .vbs/boards.db (bbolt) and sent submissions are logged
to .vbs/history.db (SQLite). The access token and admin token come from the
[server] section of .vbs/config and may be overridden with VBS_ACCESS_TOKEN
and VBS_ADMIN_TOKEN.

Examples:
  vbs server start
  vbs server start --listen 0.0.0.0:8720 --log-format json
  vbs server start --tls-cert server.crt --tls-key server.key`,
	Run: runServerStart,
}

var serverPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove idle boards from a running server",
	Long: `Ask a running server to delete boards not updated within --ttl.
Without --ttl the server's configured board_ttl applies.`,
	Run: runServerPrune,
}

func init() {
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverPruneCmd)

	f := serverStartCmd.Flags()
	f.StringVar(&serverListen, "listen", os.Getenv("VBS_LISTEN"), "Listen address (default: server.addr from config)")
	f.StringVar(&serverTLSCert, "tls-cert", os.Getenv("VBS_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serverTLSKey, "tls-key", os.Getenv("VBS_TLS_KEY"), "TLS key file")
	f.StringVar(&serverWebhookURLs, "webhook-urls", os.Getenv("VBS_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on submission")

	pf := serverPruneCmd.Flags()
	pf.StringVar(&serverAdminURL, "url", envOrDefault("VBS_SERVER_URL", "http://localhost:8720"), "Server base URL (env: VBS_SERVER_URL)")
	pf.StringVar(&serverAdminToken, "admin-token", os.Getenv("VBS_ADMIN_TOKEN"), "Admin token (env: VBS_ADMIN_TOKEN)")
	pf.DurationVar(&serverPruneTTL, "ttl", 0, "Idle time after which a board is removed")
}

func runServerStart(_ *cobra.Command, _ []string) {
	c := initContext()
	cfg := c.Config
	logger := c.Logger

	if serverListen != "" {
		cfg.Server.Addr = serverListen
	}
	if v := os.Getenv("VBS_ACCESS_TOKEN"); v != "" {
		cfg.Server.AccessToken = v
	}
	if v := os.Getenv("VBS_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if serverWebhookURLs != "" {
		cfg.Server.Webhooks = append(cfg.Server.Webhooks, strings.Split(serverWebhookURLs, ",")...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open project", "error", err)
		os.Exit(1)
	}

	err = a.Serve(ctx, cfg.Server.Addr, app.TLS{CertFile: serverTLSCert, KeyFile: serverTLSKey})
	if cerr := a.Close(); cerr != nil {
		logger.Error("close stores", "error", cerr)
	}
	if err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func runServerPrune(_ *cobra.Command, _ []string) {
	if serverAdminToken == "" {
		exitError("admin token required (--admin-token or VBS_ADMIN_TOKEN)")
	}

	res, err := server.NewAdminClient(serverAdminURL, serverAdminToken).Prune(context.Background(), serverPruneTTL)
	if err != nil {
		exitError("%v", err)
	}

	if len(res.Pruned) == 0 {
		fmt.Printf("No boards idle since %s\n", res.Cutoff.Local().Format(time.DateTime))
		return
	}
	for _, id := range res.Pruned {
		color.New(color.FgRed).Printf("removed ")
		fmt.Println(shortID(id))
	}
	fmt.Printf("%d board(s) pruned\n", len(res.Pruned))
}
