package models

// SearchResult is a single ranked keyframe returned by the search backend.
type SearchResult struct {
	VideoName string  `json:"video_name"`
	FrameIdx  int     `json:"frame_idx"`
	ImagePath string  `json:"image_path"`
	Score     float64 `json:"score"`
}
