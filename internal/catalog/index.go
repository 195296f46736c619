// Package catalog holds the read-only keyframe reference data: the grouped
// keyframe index, per-keyframe video metadata and the video watch index.
// Everything here is immutable once loaded and safe for concurrent reads.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/kilupskalvis/vbs/internal/models"
)

// ErrNotFound is returned when a collection, video or frame is absent from the index.
var ErrNotFound = errors.New("not found")

// GroupedIndex maps collection -> video -> keyframes ordered by frame number.
type GroupedIndex struct {
	videos map[string]map[string][]models.FrameID
	total  int
}

// NewGroupedIndex builds an index from collection -> video -> filenames.
// Each video's frames are sorted ascending regardless of input order.
func NewGroupedIndex(raw map[string]map[string][]string) (*GroupedIndex, error) {
	idx := &GroupedIndex{videos: make(map[string]map[string][]models.FrameID, len(raw))}

	for collection, videos := range raw {
		byVideo := make(map[string][]models.FrameID, len(videos))
		for video, files := range videos {
			frames := make([]models.FrameID, 0, len(files))
			for _, name := range files {
				num, ext, err := models.ParseFrameFilename(name)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: %w", collection, video, err)
				}
				frames = append(frames, models.FrameID{Collection: collection, Video: video, Number: num, Ext: ext})
			}
			sort.SliceStable(frames, func(i, j int) bool { return frames[i].Number < frames[j].Number })
			byVideo[video] = frames
			idx.total += len(frames)
		}
		idx.videos[collection] = byVideo
	}

	return idx, nil
}

// LoadGroupedIndex reads a grouped keyframe index JSON file.
func LoadGroupedIndex(path string) (*GroupedIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grouped index: %w", err)
	}

	var raw map[string]map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse grouped index: %w", err)
	}

	return NewGroupedIndex(raw)
}

// Frames returns the ordered keyframes of one video. The slice must not be modified.
func (g *GroupedIndex) Frames(collection, video string) ([]models.FrameID, bool) {
	if g == nil {
		return nil, false
	}
	frames, ok := g.videos[collection][video]
	return frames, ok
}

// Position locates ref within its video and returns the video's ordered frames.
func (g *GroupedIndex) Position(ref models.FrameID) (int, []models.FrameID, error) {
	frames, ok := g.Frames(ref.Collection, ref.Video)
	if !ok {
		return -1, nil, fmt.Errorf("video %s/%s: %w", ref.Collection, ref.Video, ErrNotFound)
	}

	i := sort.Search(len(frames), func(i int) bool { return frames[i].Number >= ref.Number })
	if i == len(frames) || frames[i].Number != ref.Number {
		return -1, nil, fmt.Errorf("frame %s: %w", ref, ErrNotFound)
	}
	return i, frames, nil
}

// Collections returns all collection keys in sorted order.
func (g *GroupedIndex) Collections() []string {
	if g == nil {
		return nil
	}
	keys := make([]string, 0, len(g.videos))
	for k := range g.videos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Videos returns the video names of a collection in sorted order.
func (g *GroupedIndex) Videos(collection string) []string {
	if g == nil {
		return nil
	}
	videos := g.videos[collection]
	names := make([]string, 0, len(videos))
	for v := range videos {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// FindVideo returns the collection that contains the named video.
func (g *GroupedIndex) FindVideo(video string) (string, bool) {
	if g == nil {
		return "", false
	}
	for _, c := range g.Collections() {
		if _, ok := g.videos[c][video]; ok {
			return c, true
		}
	}
	return "", false
}

// TotalFrames returns the number of keyframes across all videos.
func (g *GroupedIndex) TotalFrames() int {
	if g == nil {
		return 0
	}
	return g.total
}
