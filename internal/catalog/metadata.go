package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilupskalvis/vbs/internal/models"
)

// DefaultVideoFPS is assumed when a keyframe has no metadata record.
const DefaultVideoFPS = 30

// VideoMetadata maps MetadataKey(video, frame) to the keyframe's metadata.
type VideoMetadata struct {
	records map[string]models.VideoMeta
}

// NewVideoMetadata wraps an already decoded metadata map.
func NewVideoMetadata(records map[string]models.VideoMeta) *VideoMetadata {
	if records == nil {
		records = make(map[string]models.VideoMeta)
	}
	return &VideoMetadata{records: records}
}

// LoadVideoMetadata reads a video metadata JSON file.
func LoadVideoMetadata(path string) (*VideoMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read video metadata: %w", err)
	}

	var records map[string]models.VideoMeta
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse video metadata: %w", err)
	}
	return NewVideoMetadata(records), nil
}

// Lookup returns the metadata record for a key.
func (m *VideoMetadata) Lookup(key string) (models.VideoMeta, bool) {
	if m == nil {
		return models.VideoMeta{}, false
	}
	rec, ok := m.records[key]
	return rec, ok
}

// FPS returns the recorded frame rate, or DefaultVideoFPS.
func (m *VideoMetadata) FPS(key string) float64 {
	if rec, ok := m.Lookup(key); ok && rec.FPS > 0 {
		return rec.FPS
	}
	return DefaultVideoFPS
}

// Len returns the number of records.
func (m *VideoMetadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.records)
}
