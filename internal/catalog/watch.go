package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilupskalvis/vbs/internal/models"
)

// WatchIndex maps a video name to its public links.
type WatchIndex struct {
	videos map[string]models.WatchInfo
}

// NewWatchIndex wraps an already decoded watch index.
func NewWatchIndex(videos map[string]models.WatchInfo) *WatchIndex {
	if videos == nil {
		videos = make(map[string]models.WatchInfo)
	}
	return &WatchIndex{videos: videos}
}

// LoadWatchIndex reads a video watch index JSON file.
func LoadWatchIndex(path string) (*WatchIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch index: %w", err)
	}

	var videos map[string]models.WatchInfo
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("parse watch index: %w", err)
	}
	return NewWatchIndex(videos), nil
}

// Lookup returns the links of a video.
func (w *WatchIndex) Lookup(video string) (models.WatchInfo, bool) {
	if w == nil {
		return models.WatchInfo{}, false
	}
	info, ok := w.videos[video]
	return info, ok
}

// Len returns the number of indexed videos.
func (w *WatchIndex) Len() int {
	if w == nil {
		return 0
	}
	return len(w.videos)
}

// mediaInfo is the subset of a per-video media-info file we index.
type mediaInfo struct {
	VideoName    string `json:"video_name"`
	WatchURL     string `json:"watch_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ChannelURL   string `json:"channel_url"`
}

// BuildWatchIndex walks media-info directories and collects watch links.
// The video name defaults to the file base name. Unreadable files and files
// without a watch_url are skipped.
func BuildWatchIndex(logger *slog.Logger, dirs ...string) (*WatchIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	videos := make(map[string]models.WatchInfo)
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("skipping unreadable media info", "path", path, "error", err)
				return nil
			}
			var info mediaInfo
			if err := json.Unmarshal(data, &info); err != nil {
				logger.Warn("skipping invalid media info", "path", path, "error", err)
				return nil
			}
			if info.WatchURL == "" {
				logger.Warn("no watch_url, skipping", "path", path)
				return nil
			}

			name := info.VideoName
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			videos[name] = models.WatchInfo{
				WatchURL:     info.WatchURL,
				ThumbnailURL: info.ThumbnailURL,
				ChannelURL:   info.ChannelURL,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
	}

	return NewWatchIndex(videos), nil
}

// Write saves the index as indented JSON, creating parent directories.
func (w *WatchIndex) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(w.videos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watch index: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
