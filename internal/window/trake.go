package window

import (
	"math"
	"math/rand"
	"slices"
	"time"
)

// Defaults for TrakeVariations.
const (
	DefaultTrakeStep    = 5
	DefaultTrakeEpsilon = 50
	DefaultTrakeRows    = 100
)

// TrakeVariations expands a set of TRAKE anchor frames into rows of candidate
// frame sets. The first row is the anchors themselves. Following rows shift
// every anchor by the same offset in [-epsilon, epsilon] with the given step,
// skipping rows that would contain a negative frame. Remaining rows shift each
// anchor independently in a random direction by a growing offset.
func TrakeVariations(anchors []int, step, epsilon, rows int, rng *rand.Rand) [][]int {
	if len(anchors) == 0 || rows <= 0 {
		return nil
	}
	if step <= 0 {
		step = DefaultTrakeStep
	}
	if epsilon < 0 {
		epsilon = 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	result := [][]int{append([]int(nil), anchors...)}

	// Offsets below -min(anchors) always yield a negative frame. Start at the
	// first grid point of -epsilon, -epsilon+step, ... that can succeed.
	offset := -epsilon
	if lowest := -slices.Min(anchors); lowest > offset {
		offset += (lowest - offset) / step * step
		if offset < lowest {
			offset += step
		}
	}
	for ; offset <= epsilon && len(result) < rows; offset += step {
		if offset != 0 {
			if row, ok := shiftAll(anchors, offset); ok {
				result = append(result, row)
			}
		}
		if offset > epsilon-step {
			break
		}
	}

	// Random rows can keep producing negatives for anchors near zero; after
	// enough misses fall back to shifting everything forward.
	maxMisses := rows * 10
	misses := 0
	limit := math.MaxInt - slices.Max(anchors) - step
	for offset := step; len(result) < rows && offset <= limit; offset += step {
		row := make([]int, len(anchors))
		valid := true
		for i, a := range anchors {
			dir := 1
			if rng.Intn(2) == 0 {
				dir = -1
			}
			row[i] = a + offset*dir
			if row[i] < 0 {
				valid = false
			}
		}
		if valid {
			result = append(result, row)
			continue
		}
		misses++
		if misses >= maxMisses {
			if fwd, ok := shiftAll(anchors, offset); ok {
				result = append(result, fwd)
			}
		}
	}

	return result[:min(rows, len(result))]
}

func shiftAll(anchors []int, offset int) ([]int, bool) {
	row := make([]int, len(anchors))
	for i, a := range anchors {
		row[i] = a + offset
		if row[i] < 0 {
			return nil, false
		}
	}
	return row, true
}
