// Package window computes bounded windows of keyframes around a reference
// frame, either as a contiguous slice of a video's keyframes or as a
// proximity-ordered, strided sequence of synthesized frame numbers.
package window

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/kilupskalvis/vbs/internal/models"
)

// Defaults used by the related-frames slider: 100 frames, reference at index 19.
const (
	DefaultBefore = 19
	DefaultAfter  = 80
)

var (
	// ErrNotFound is returned when the reference frame is not in the index.
	ErrNotFound = catalog.ErrNotFound

	// ErrInvalidWindow is returned for negative window bounds.
	ErrInvalidWindow = errors.New("window bounds must be non-negative")

	// ErrInvalidStride is returned for a negative stride.
	ErrInvalidStride = errors.New("stride must be non-negative")
)

// AroundFrame returns a contiguous, ascending window of ref's video.
// The window holds before+after+1 frames whenever the video is long enough.
// Near the start or end of the video the window shifts inward instead of
// shrinking; shorter videos are returned whole.
func AroundFrame(idx *catalog.GroupedIndex, ref models.FrameID, before, after int) ([]models.FrameID, error) {
	if before < 0 || after < 0 {
		return nil, ErrInvalidWindow
	}

	pos, frames, err := idx.Position(ref)
	if err != nil {
		return nil, fmt.Errorf("related frames: %w", err)
	}

	target := before + after + 1
	start := max(0, pos-before)
	end := min(len(frames), pos+after+1)

	if end-start < target {
		missing := target - (end - start)
		start = max(0, start-missing)
		end = min(len(frames), start+target)
	}

	out := make([]models.FrameID, end-start)
	copy(out, frames[start:end])
	return out, nil
}

// Stride returns frames near ref ordered by temporal proximity.
//
// With stride >= 1 the index is not consulted: frame numbers are synthesized
// as ref.Number + k*stride for k in InterleavedOffsets(before, after), and
// negative numbers are dropped. No upper bound is applied, but a stride
// whose forward frames would overflow int is rejected with ErrInvalidStride.
//
// With stride == 0 the result is AroundFrame, padded with copies of ref up
// to before+after+1 entries when the video is too short. Callers must
// tolerate the duplicates.
func Stride(idx *catalog.GroupedIndex, ref models.FrameID, stride, before, after int) ([]models.FrameID, error) {
	if stride < 0 {
		return nil, ErrInvalidStride
	}
	if before < 0 || after < 0 {
		return nil, ErrInvalidWindow
	}

	if stride == 0 {
		frames, err := AroundFrame(idx, ref, before, after)
		if err != nil {
			return nil, err
		}
		target := before + after + 1
		for len(frames) < target {
			frames = append(frames, ref)
		}
		return frames, nil
	}

	if after > 0 && stride > (math.MaxInt-ref.Number)/after {
		return nil, fmt.Errorf("%w: stride %d overflows frame numbers after %d", ErrInvalidStride, stride, ref.Number)
	}

	offsets := InterleavedOffsets(before, after)
	out := make([]models.FrameID, 0, len(offsets))
	for _, k := range offsets {
		// ref.Number + k*stride < 0 without computing the product.
		if k < 0 && stride > ref.Number/-k {
			continue
		}
		out = append(out, ref.WithNumber(ref.Number+k*stride))
	}
	return out, nil
}

// InterleavedOffsets returns 0, +1, -1, +2, -2, ... up to max(before, after),
// skipping positive offsets above after and negative offsets below -before.
// Truncating the result keeps the offsets closest to zero.
func InterleavedOffsets(before, after int) []int {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}

	out := make([]int, 0, before+after+1)
	out = append(out, 0)
	for k := 1; k <= max(before, after); k++ {
		if k <= after {
			out = append(out, k)
		}
		if k <= before {
			out = append(out, -k)
		}
	}
	return out
}

// Centered keeps the frames belonging to current's video, sorts them by frame
// number and returns the position of current in the result. The position is
// 0 when current is missing. Paths that cannot be parsed are dropped.
func Centered(frames []string, current string) ([]string, int) {
	cur, err := models.ParseFrameID(current)
	if err != nil {
		return nil, 0
	}

	type item struct {
		path string
		num  int
	}
	var same []item
	for _, p := range frames {
		f, err := models.ParseFrameID(p)
		if err != nil || !f.SameVideo(cur) {
			continue
		}
		same = append(same, item{path: p, num: f.Number})
	}
	sort.SliceStable(same, func(i, j int) bool { return same[i].num < same[j].num })

	out := make([]string, len(same))
	index := 0
	found := false
	for i, it := range same {
		out[i] = it.path
		if !found && it.num == cur.Number {
			index = i
			found = true
		}
	}
	return out, index
}
