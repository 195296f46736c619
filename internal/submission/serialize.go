package submission

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/models"
)

// DefaultFPS is the frame rate assumed when converting frame indexes to
// evaluation timestamps.
const DefaultFPS = 25.0

// ErrEmptySelection is returned when there is nothing to submit.
var ErrEmptySelection = errors.New("no frames selected for submission")

// FrameToMillis converts a frame index to milliseconds at fps.
func FrameToMillis(frame int, fps float64) int64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return int64(math.Round(float64(frame) / fps * 1000))
}

// MillisToFrame converts milliseconds back to the nearest frame index at fps.
func MillisToFrame(ms int64, fps float64) int {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return int(math.Round(float64(ms) * fps / 1000))
}

// VideoID is the media item name the evaluation server expects.
func VideoID(video string) string {
	return strings.ToUpper(video)
}

// Serialize builds the evaluation request body for a task's entries.
// KIS and QA use the first entry. TRAKE merges the frames of every entry
// under the first entry's video. placeholder fills an empty QA answer.
func Serialize(task models.Task, entries []models.Entry, placeholder string, fps float64) (*evaluation.RequestBody, error) {
	if len(entries) == 0 {
		return nil, ErrEmptySelection
	}
	first := entries[0]
	if first.VideoName == "" {
		return nil, fmt.Errorf("%w: entry has no video name", ErrInvalidInput)
	}

	var answer evaluation.Answer
	switch task {
	case models.TaskKIS:
		ms := FrameToMillis(first.FrameIdx, fps)
		answer = evaluation.Answer{MediaItemName: VideoID(first.VideoName), Start: &ms, End: &ms}

	case models.TaskQA:
		text := strings.TrimSpace(first.Answer)
		if text == "" {
			text = strings.TrimSpace(placeholder)
		}
		ms := FrameToMillis(first.FrameIdx, fps)
		answer = evaluation.Answer{Text: fmt.Sprintf("QA-%s-%s-%d", text, VideoID(first.VideoName), ms)}

	case models.TaskTRAKE:
		frames := MergeFrames(entries)
		if len(frames) == 0 {
			return nil, ErrEmptySelection
		}
		parts := make([]string, len(frames))
		for i, f := range frames {
			parts[i] = strconv.Itoa(f)
		}
		answer = evaluation.Answer{Text: fmt.Sprintf("TR-%s-%s", VideoID(first.VideoName), strings.Join(parts, ","))}

	default:
		return nil, fmt.Errorf("%w: unknown task %q", ErrInvalidInput, task)
	}

	return &evaluation.RequestBody{
		AnswerSets: []evaluation.AnswerSet{{Answers: []evaluation.Answer{answer}}},
	}, nil
}

// MergeFrames returns the de-duplicated ascending frame indexes of all
// TRAKE entries.
func MergeFrames(entries []models.Entry) []int {
	var frames []int
	for _, e := range entries {
		frames = append(frames, e.Frames...)
	}
	slices.Sort(frames)
	return slices.Compact(frames)
}

// SpansVideos reports whether a TRAKE list holds entries from more than one
// video, which Serialize collapses onto the first video.
func SpansVideos(entries []models.Entry) bool {
	for _, e := range entries[min(1, len(entries)):] {
		if e.VideoName != entries[0].VideoName {
			return true
		}
	}
	return false
}
