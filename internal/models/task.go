package models

import (
	"fmt"
	"strings"
)

// Task is a competition task type.
type Task string

const (
	TaskKIS   Task = "kis"
	TaskQA    Task = "qa"
	TaskTRAKE Task = "trake"
)

// Tasks lists the supported task types in display order.
var Tasks = []Task{TaskKIS, TaskQA, TaskTRAKE}

// ParseTask converts a case-insensitive task name.
func ParseTask(s string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(s))) {
	case TaskKIS:
		return TaskKIS, nil
	case TaskQA:
		return TaskQA, nil
	case TaskTRAKE:
		return TaskTRAKE, nil
	}
	return "", fmt.Errorf("unknown task %q (want kis, qa or trake)", s)
}

// Frame is a single frame picked for submission.
type Frame struct {
	VideoName string `json:"video_name"`
	FrameIdx  int    `json:"frame_idx"`
}

// Entry is one item of a task's submission list.
// KIS uses VideoName+FrameIdx, QA adds Answer, TRAKE uses VideoName+Frames.
type Entry struct {
	VideoName string `json:"video_name"`
	FrameIdx  int    `json:"frame_idx"`
	Answer    string `json:"answer,omitempty"`
	Frames    []int  `json:"frames,omitempty"`
}

// FrameCount returns how many frames the entry contributes to a submission.
func (e Entry) FrameCount() int {
	if e.Frames != nil {
		return len(e.Frames)
	}
	return 1
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	if e.Frames != nil {
		e.Frames = append([]int(nil), e.Frames...)
	}
	return e
}
