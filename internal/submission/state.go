// Package submission holds the per-task submission boards and turns them
// into evaluation server request bodies.
//
// Reducers are pure: they never mutate the State they are given and always
// return a fresh copy, so callers can keep the previous value for undo or
// persistence.
package submission

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kilupskalvis/vbs/internal/models"
)

// MaxFrames is the maximum number of frames a task list may hold.
// Inserts beyond it are ignored without an error.
const MaxFrames = 100

// Mode selects how SubmitFrame combines a frame with the existing list.
type Mode string

const (
	ModeReplace    Mode = "replace"
	ModeAccumulate Mode = "accumulate"
)

// ParseMode converts a mode name. Empty selects the task default.
func ParseMode(task models.Task, s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return DefaultMode(task), nil
	case ModeReplace, ModeAccumulate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

// DefaultMode is the interaction mode the board uses for a task:
// KIS and QA keep a single frame, TRAKE collects frames.
func DefaultMode(task models.Task) Mode {
	if task == models.TaskTRAKE {
		return ModeAccumulate
	}
	return ModeReplace
}

var (
	// ErrCrossVideoMismatch matches *CrossVideoError.
	ErrCrossVideoMismatch = errors.New("cross-video mismatch")
	ErrInvalidInput       = errors.New("invalid input")
)

// CrossVideoError reports a TRAKE insert from a video other than the one
// already on the board.
type CrossVideoError struct {
	Existing  string
	Attempted string
}

func (e *CrossVideoError) Error() string {
	return fmt.Sprintf("all TRAKE frames must come from the same video: board holds %s, frame is from %s", e.Existing, e.Attempted)
}

func (e *CrossVideoError) Is(target error) bool {
	return target == ErrCrossVideoMismatch
}

// State is the set of per-task submission lists plus the selected task.
type State struct {
	KIS     []models.Entry `json:"kis"`
	QA      []models.Entry `json:"qa"`
	TRAKE   []models.Entry `json:"trake"`
	Current models.Task    `json:"current_task"`
}

// NewState returns an empty board with KIS selected.
func NewState() State {
	return State{Current: models.TaskKIS}
}

// List returns the entries held for a task.
func (s State) List(task models.Task) []models.Entry {
	switch task {
	case models.TaskKIS:
		return s.KIS
	case models.TaskQA:
		return s.QA
	case models.TaskTRAKE:
		return s.TRAKE
	}
	return nil
}

// Total returns the number of frames held for a task.
func (s State) Total(task models.Task) int {
	n := 0
	for _, e := range s.List(task) {
		n += e.FrameCount()
	}
	return n
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{
		KIS:     cloneEntries(s.KIS),
		QA:      cloneEntries(s.QA),
		TRAKE:   cloneEntries(s.TRAKE),
		Current: s.Current,
	}
}

func (s State) with(task models.Task, list []models.Entry) State {
	out := s.Clone()
	switch task {
	case models.TaskKIS:
		out.KIS = list
	case models.TaskQA:
		out.QA = list
	case models.TaskTRAKE:
		out.TRAKE = list
	}
	return out
}

func cloneEntries(in []models.Entry) []models.Entry {
	if in == nil {
		return nil
	}
	out := make([]models.Entry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

func validTask(task models.Task) error {
	if !slices.Contains(models.Tasks, task) {
		return fmt.Errorf("%w: unknown task %q", ErrInvalidInput, task)
	}
	return nil
}

func validFrame(f models.Frame) error {
	if f.VideoName == "" {
		return fmt.Errorf("%w: frame has no video name", ErrInvalidInput)
	}
	if f.FrameIdx < 0 {
		return fmt.Errorf("%w: negative frame index %d", ErrInvalidInput, f.FrameIdx)
	}
	return nil
}

// EntryFor maps a frame to the entry shape of a task.
func EntryFor(task models.Task, f models.Frame) models.Entry {
	if task == models.TaskTRAKE {
		return models.Entry{VideoName: f.VideoName, Frames: []int{f.FrameIdx}}
	}
	return models.Entry{VideoName: f.VideoName, FrameIdx: f.FrameIdx}
}

// SubmitFrame adds a frame to a task's list and returns the new state.
// A full list (MaxFrames) leaves the state unchanged. A TRAKE frame from a
// video other than the board's first entry fails with *CrossVideoError.
func SubmitFrame(s State, task models.Task, f models.Frame, mode Mode) (State, error) {
	if err := validTask(task); err != nil {
		return s, err
	}
	if err := validFrame(f); err != nil {
		return s, err
	}
	if s.Total(task) >= MaxFrames {
		return s, nil
	}

	if mode == ModeReplace {
		return s.with(task, []models.Entry{EntryFor(task, f)}), nil
	}
	if mode != ModeAccumulate {
		return s, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}

	list := cloneEntries(s.List(task))
	if task != models.TaskTRAKE {
		for _, e := range list {
			if e.VideoName == f.VideoName && e.FrameIdx == f.FrameIdx {
				return s, nil
			}
		}
		return s.with(task, append(list, EntryFor(task, f))), nil
	}

	if len(list) == 0 {
		return s.with(task, []models.Entry{EntryFor(task, f)}), nil
	}
	if list[0].VideoName != f.VideoName {
		return s, &CrossVideoError{Existing: list[0].VideoName, Attempted: f.VideoName}
	}
	if slices.Contains(list[0].Frames, f.FrameIdx) {
		return s, nil
	}
	list[0].Frames = append(list[0].Frames, f.FrameIdx)
	slices.Sort(list[0].Frames)
	return s.with(task, list), nil
}

// SubmitFrameset replaces a task's list with a bulk selection, typically a
// frame window. TRAKE frames are grouped into one entry per video instead
// of being rejected.
func SubmitFrameset(s State, task models.Task, frames []models.Frame) (State, error) {
	if err := validTask(task); err != nil {
		return s, err
	}
	for _, f := range frames {
		if err := validFrame(f); err != nil {
			return s, err
		}
	}

	out := s.with(task, nil)
	if task != models.TaskTRAKE {
		for _, f := range frames {
			out, _ = SubmitFrame(out, task, f, ModeAccumulate)
		}
		return out, nil
	}

	var list []models.Entry
	total := 0
	for _, f := range frames {
		if total >= MaxFrames {
			break
		}
		i := slices.IndexFunc(list, func(e models.Entry) bool { return e.VideoName == f.VideoName })
		if i < 0 {
			list = append(list, EntryFor(task, f))
			total++
			continue
		}
		if slices.Contains(list[i].Frames, f.FrameIdx) {
			continue
		}
		list[i].Frames = append(list[i].Frames, f.FrameIdx)
		slices.Sort(list[i].Frames)
		total++
	}
	return out.with(task, list), nil
}

// SetAnswer sets the answer text of a QA entry.
func SetAnswer(s State, index int, answer string) (State, error) {
	if index < 0 || index >= len(s.QA) {
		return s, fmt.Errorf("%w: QA entry %d out of range (have %d)", ErrInvalidInput, index, len(s.QA))
	}
	out := s.Clone()
	out.QA[index].Answer = answer
	return out, nil
}

// RemoveEntry drops one entry from a task's list.
func RemoveEntry(s State, task models.Task, index int) (State, error) {
	if err := validTask(task); err != nil {
		return s, err
	}
	list := s.List(task)
	if index < 0 || index >= len(list) {
		return s, fmt.Errorf("%w: entry %d out of range (have %d)", ErrInvalidInput, index, len(list))
	}
	return s.with(task, slices.Delete(cloneEntries(list), index, index+1)), nil
}

// Clear empties a task's list.
func Clear(s State, task models.Task) (State, error) {
	if err := validTask(task); err != nil {
		return s, err
	}
	return s.with(task, nil), nil
}

// SelectTask switches the current task and starts it with an empty list.
func SelectTask(s State, task models.Task) (State, error) {
	if err := validTask(task); err != nil {
		return s, err
	}
	out := s.with(task, nil)
	out.Current = task
	return out, nil
}
