package models

import "fmt"

// VideoMeta is the per-keyframe metadata record produced during extraction.
type VideoMeta struct {
	FPS        float64 `json:"fps"`
	Resolution string  `json:"resolution,omitempty"`
	FrameIdx   int     `json:"frame_idx"`
	PTSTime    float64 `json:"pts_time"`
	Duration   string  `json:"duration_formatted,omitempty"`
}

// MetadataKey builds the lookup key of a keyframe's metadata record.
func MetadataKey(videoName string, frameIdx int) string {
	return fmt.Sprintf("%s_%06d", videoName, frameIdx)
}

// WatchInfo holds the public links of a source video.
type WatchInfo struct {
	WatchURL     string `json:"watch_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ChannelURL   string `json:"channel_url,omitempty"`
}
