package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/models"
)

// DefaultTimeout is how long Send waits for the evaluation server before
// returning the workflow to idle.
const DefaultTimeout = 10 * time.Second

// Phase is a step of the submission workflow.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePreviewBuilt Phase = "preview_built"
	PhaseSending      Phase = "sending"
	PhaseSucceeded    Phase = "succeeded"
	PhaseFailed       Phase = "failed"
)

var (
	ErrBusy              = errors.New("a submission is already in flight")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrTimeout           = errors.New("no response from evaluation server yet")
)

// Sender posts a request body to the evaluation server.
type Sender interface {
	Submit(ctx context.Context, evaluationID, sessionID string, body *evaluation.RequestBody) (*evaluation.SubmitResponse, error)
}

// Outcome records a finished submission request.
type Outcome struct {
	Task         models.Task                `json:"task"`
	EvaluationID string                     `json:"evaluation_id"`
	Body         *evaluation.RequestBody    `json:"body"`
	Response     *evaluation.SubmitResponse `json:"response,omitempty"`
	Error        string                     `json:"error,omitempty"`
	StartedAt    time.Time                  `json:"started_at"`
	FinishedAt   time.Time                  `json:"finished_at"`
	Late         bool                       `json:"late,omitempty"`
	err          error
}

// Err returns the request error, if any.
func (o *Outcome) Err() error { return o.err }

// Snapshot is a point-in-time view of a workflow.
type Snapshot struct {
	Phase    Phase                   `json:"phase"`
	Task     models.Task             `json:"task,omitempty"`
	Preview  *evaluation.RequestBody `json:"preview,omitempty"`
	Busy     bool                    `json:"busy"`
	TimedOut bool                    `json:"timed_out"`
	Last     *Outcome                `json:"last,omitempty"`
}

// Workflow drives a board through
// idle -> preview_built -> sending -> succeeded|failed -> idle.
// Only one request may be in flight at a time.
type Workflow struct {
	mu       sync.Mutex
	phase    Phase
	task     models.Task
	preview  *evaluation.RequestBody
	busy     bool
	timedOut bool
	last     *Outcome

	timeout    time.Duration
	onComplete func(*Outcome)
	now        func() time.Time
}

// NewWorkflow creates an idle workflow. onComplete, if set, is called once
// for every finished request, including ones that arrive after the timeout.
func NewWorkflow(timeout time.Duration, onComplete func(*Outcome)) *Workflow {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Workflow{
		phase:      PhaseIdle,
		timeout:    timeout,
		onComplete: onComplete,
		now:        time.Now,
	}
}

// Snapshot returns the current workflow state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Phase:    w.phase,
		Task:     w.task,
		Preview:  w.preview,
		Busy:     w.busy,
		TimedOut: w.timedOut,
		Last:     w.last,
	}
}

// Prepare stores the body to be sent for task and moves to preview_built.
// A new preview may replace an existing one.
func (w *Workflow) Prepare(task models.Task, body *evaluation.RequestBody) error {
	if body == nil || len(body.AnswerSets) == 0 {
		return ErrEmptySelection
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.phase {
	case PhaseIdle, PhasePreviewBuilt:
	case PhaseSending:
		return ErrBusy
	default:
		return fmt.Errorf("%w: acknowledge the %s result before preparing", ErrInvalidTransition, w.phase)
	}
	w.task = task
	w.preview = body
	w.phase = PhasePreviewBuilt
	w.timedOut = false
	return nil
}

// Acknowledge returns a finished or previewed workflow to idle.
func (w *Workflow) Acknowledge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == PhaseSending {
		return ErrBusy
	}
	w.phase = PhaseIdle
	w.task = ""
	w.preview = nil
	w.timedOut = false
	return nil
}

// Send posts the prepared body and waits for the response or the timeout.
// On timeout the workflow goes back to idle and ErrTimeout is returned; the
// request keeps running and its result is recorded as a late outcome.
func (w *Workflow) Send(ctx context.Context, sender Sender, evaluationID, sessionID string) (*Outcome, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.phase != PhasePreviewBuilt {
		phase := w.phase
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: nothing prepared to send (phase %s)", ErrInvalidTransition, phase)
	}
	w.busy = true
	w.phase = PhaseSending
	w.timedOut = false
	task, body := w.task, w.preview
	w.mu.Unlock()

	started := w.now()
	reqCtx := context.WithoutCancel(ctx)
	done := make(chan *Outcome, 1)
	go func() {
		resp, err := sender.Submit(reqCtx, evaluationID, sessionID, body)
		out := &Outcome{
			Task:         task,
			EvaluationID: evaluationID,
			Body:         body,
			Response:     resp,
			StartedAt:    started,
			FinishedAt:   w.now(),
			err:          err,
		}
		if err != nil {
			out.Error = err.Error()
		}
		w.finish(out)
		done <- out
	}()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out, out.err
	case <-timer.C:
		if w.expire() {
			return nil, ErrTimeout
		}
		out := <-done
		return out, out.err
	}
}

func (w *Workflow) finish(out *Outcome) {
	w.mu.Lock()
	w.busy = false
	w.last = out
	if w.phase == PhaseSending {
		if out.err != nil {
			w.phase = PhaseFailed
		} else {
			w.phase = PhaseSucceeded
		}
	} else {
		out.Late = true
	}
	w.mu.Unlock()

	if w.onComplete != nil {
		w.onComplete(out)
	}
}

// expire moves a still-sending workflow back to idle.
func (w *Workflow) expire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != PhaseSending {
		return false
	}
	w.phase = PhaseIdle
	w.timedOut = true
	return true
}
