package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/vbs/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	index := map[string]map[string][]string{
		"K01": {"L01_V001": {"f000000.webp", "f000025.webp", "f000050.webp"}},
	}
	data, err := json.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "grouped_keyframes.json"), data, 0644))

	cfg := config.Default()
	cfg.WatchIndex = "data/missing_watch.json"
	cfg.Server.AccessToken = "tok"
	cfg.Server.PruneInterval = config.Duration{Duration: 30 * time.Minute}
	cfg.Server.Webhooks = []string{" http://hooks.local/a ", ""}
	cfg, err = config.Initialize(dir, cfg)
	require.NoError(t, err)
	return cfg
}

func TestOpen(t *testing.T) {
	cfg := newProject(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 3, a.Catalog.Index.TotalFrames())
	assert.Equal(t, 0, a.Catalog.Watch.Len())

	deps := a.Deps()
	assert.NotNil(t, deps.Boards)
	assert.NotNil(t, deps.History)

	sc := a.ServerConfig()
	assert.Equal(t, "tok", sc.AccessToken)
	assert.Equal(t, 25.0, sc.FPS)
	assert.Equal(t, 19, sc.WindowBefore)
	assert.Equal(t, 10*time.Second, sc.SubmitTimeout)
	assert.Equal(t, 72*time.Hour, sc.BoardTTL)
	assert.Equal(t, 30*time.Minute, sc.PruneInterval)
	assert.NotNil(t, sc.Webhooks)
}

func TestOpen_MissingIndex(t *testing.T) {
	cfg := newProject(t)
	cfg.GroupedIndex = "data/nope.json"

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := newProject(t)
	a, err := Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx, "127.0.0.1:0", TLS{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTrimList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, TrimList([]string{" a", "", "b ", "  "}))
	assert.Nil(t, TrimList(nil))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("warn", "json", &buf).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger("debug", "json", &buf).Debug("shown", "k", "v")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])

	buf.Reset()
	NewLogger("info", "text", &buf).Info("hello")
	assert.Contains(t, buf.String(), "hello")
}
