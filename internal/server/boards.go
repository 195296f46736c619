package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kilupskalvis/vbs/internal/boardstore"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/submission"
	"github.com/kilupskalvis/vbs/internal/window"
)

// boardFlow is the in-memory submission workflow of one board.
type boardFlow struct {
	wf *submission.Workflow
}

type flowRegistry struct {
	mu    sync.Mutex
	flows map[string]*boardFlow
	build func(boardID string) *submission.Workflow
}

func newFlowRegistry(mk func(boardID string) *submission.Workflow) *flowRegistry {
	return &flowRegistry{flows: make(map[string]*boardFlow), build: mk}
}

func (r *flowRegistry) get(boardID string) *boardFlow {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[boardID]
	if !ok {
		f = &boardFlow{wf: r.build(boardID)}
		r.flows[boardID] = f
	}
	return f
}

func (r *flowRegistry) drop(boardID string) {
	r.mu.Lock()
	delete(r.flows, boardID)
	r.mu.Unlock()
}

// newWorkflow builds a board workflow whose completed requests are counted,
// logged to history and announced to webhooks.
func (a *api) newWorkflow(boardID string) *submission.Workflow {
	return submission.NewWorkflow(a.cfg.SubmitTimeout, func(o *submission.Outcome) {
		task := o.Task
		outcome := "success"
		if o.Err() != nil {
			outcome = "failure"
		}
		metricSubmissions.WithLabelValues(string(task), outcome).Inc()
		metricSubmitDuration.Observe(o.FinishedAt.Sub(o.StartedAt).Seconds())

		if o.Late {
			a.logger.Warn("submission response arrived after timeout",
				"board_id", boardID, "task", task, "error", o.Error)
		}

		if a.deps.History != nil {
			rec, err := history.FromOutcome(boardID, o)
			if err == nil {
				err = a.deps.History.Record(rec)
			}
			if err != nil {
				a.logger.Error("record submission", "board_id", boardID, "error", err)
			}
		}

		if o.Err() == nil {
			event := &WebhookEvent{
				BoardID:      boardID,
				Task:         task,
				EvaluationID: o.EvaluationID,
				Late:         o.Late,
			}
			if o.Response != nil {
				event.Status = o.Response.Status
				event.Response = o.Response.Data
			}
			a.cfg.Webhooks.NotifySubmission(event)
		}
	})
}

func resolveTask(name string, current models.Task) (models.Task, error) {
	if name == "" {
		if current == "" {
			return models.TaskKIS, nil
		}
		return current, nil
	}
	t, err := models.ParseTask(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", submission.ErrInvalidInput, err)
	}
	return t, nil
}

// updateState applies a reducer to a stored board and writes the result.
func (a *api) updateState(w http.ResponseWriter, r *http.Request, fn func(s submission.State) (submission.State, error)) {
	board, err := a.deps.Boards.Update(r.Context(), r.PathValue("id"), func(b *boardstore.Board) error {
		next, err := fn(b.State)
		if err != nil {
			return err
		}
		b.State = next
		return nil
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// --- Board CRUD ---

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	board := &boardstore.Board{
		ID:    uuid.New().String(),
		Name:  strings.TrimSpace(req.Name),
		State: submission.NewState(),
	}
	if err := a.deps.Boards.Create(r.Context(), board); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.deps.Boards.List(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if boards == nil {
		boards = []*boardstore.Board{}
	}
	writeJSON(w, http.StatusOK, boards)
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := a.deps.Boards.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.deps.Boards.Delete(r.Context(), id); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.flows.drop(id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Board state ---

func (a *api) handleSelectTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	task, err := models.ParseTask(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.updateState(w, r, func(s submission.State) (submission.State, error) {
		return submission.SelectTask(s, task)
	})
}

type submitFrameRequest struct {
	Task      string `json:"task,omitempty"`
	Mode      string `json:"mode,omitempty"`
	VideoName string `json:"video_name,omitempty"`
	FrameIdx  *int   `json:"frame_idx,omitempty"`
	// Path may be given instead of video_name and frame_idx.
	Path string `json:"path,omitempty"`
}

func (req *submitFrameRequest) frame() (models.Frame, error) {
	if req.Path != "" {
		id, err := models.ParseFrameID(req.Path)
		if err != nil {
			return models.Frame{}, err
		}
		return models.Frame{VideoName: id.Video, FrameIdx: id.Number}, nil
	}
	if req.VideoName == "" || req.FrameIdx == nil {
		return models.Frame{}, fmt.Errorf("%w: video_name and frame_idx or path are required", submission.ErrInvalidInput)
	}
	return models.Frame{VideoName: req.VideoName, FrameIdx: *req.FrameIdx}, nil
}

func (a *api) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	var req submitFrameRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	frame, err := req.frame()
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	a.updateState(w, r, func(s submission.State) (submission.State, error) {
		task, err := resolveTask(req.Task, s.Current)
		if err != nil {
			return s, err
		}
		mode, err := submission.ParseMode(task, req.Mode)
		if err != nil {
			return s, err
		}
		return submission.SubmitFrame(s, task, frame, mode)
	})
}

type framesetRequest struct {
	Task   string         `json:"task,omitempty"`
	Frames []models.Frame `json:"frames,omitempty"`
	// Window selects frames around a reference keyframe instead of Frames.
	Window *struct {
		Path   string `json:"path"`
		Before *int   `json:"before,omitempty"`
		After  *int   `json:"after,omitempty"`
		Stride int    `json:"stride,omitempty"`
	} `json:"window,omitempty"`
}

func (a *api) framesetFrames(req *framesetRequest) ([]models.Frame, error) {
	if req.Window == nil {
		return req.Frames, nil
	}
	ref, err := models.ParseFrameID(req.Window.Path)
	if err != nil {
		return nil, err
	}
	before, after := a.cfg.WindowBefore, a.cfg.WindowAfter
	if req.Window.Before != nil {
		before = *req.Window.Before
	}
	if req.Window.After != nil {
		after = *req.Window.After
	}
	if before > maxWindowSide || after > maxWindowSide {
		return nil, fmt.Errorf("%w: before and after must be at most %d", submission.ErrInvalidInput, maxWindowSide)
	}
	if req.Window.Stride > maxStride {
		return nil, fmt.Errorf("%w: stride must be at most %d", submission.ErrInvalidInput, maxStride)
	}
	ids, err := window.Stride(a.deps.Catalog.Index, ref, req.Window.Stride, before, after)
	if err != nil {
		return nil, err
	}
	frames := make([]models.Frame, len(ids))
	for i, id := range ids {
		frames[i] = models.Frame{VideoName: id.Video, FrameIdx: id.Number}
	}
	return frames, nil
}

func (a *api) handleSubmitFrameset(w http.ResponseWriter, r *http.Request) {
	var req framesetRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	frames, err := a.framesetFrames(&req)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	a.updateState(w, r, func(s submission.State) (submission.State, error) {
		task, err := resolveTask(req.Task, s.Current)
		if err != nil {
			return s, err
		}
		return submission.SubmitFrameset(s, task, frames)
	})
}

func (a *api) handleSetAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index  int    `json:"index"`
		Answer string `json:"answer"`
	}
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.updateState(w, r, func(s submission.State) (submission.State, error) {
		return submission.SetAnswer(s, req.Index, req.Answer)
	})
}

func (a *api) handleClearEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index, err := queryInt(r, "index", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	a.updateState(w, r, func(s submission.State) (submission.State, error) {
		task, err := resolveTask(q.Get("task"), s.Current)
		if err != nil {
			return s, err
		}
		if q.Has("index") {
			return submission.RemoveEntry(s, task, index)
		}
		return submission.Clear(s, task)
	})
}

func (a *api) handleBoardHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.deps.Boards.Get(r.Context(), id); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if a.deps.History == nil {
		writeJSON(w, http.StatusOK, []*history.Record{})
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	records, err := a.deps.History.ForBoard(id, limit)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// --- Submission workflow ---

func (a *api) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task        string `json:"task,omitempty"`
		Placeholder string `json:"placeholder,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	id := r.PathValue("id")
	board, err := a.deps.Boards.Get(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	task, err := resolveTask(req.Task, board.State.Current)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	entries := board.State.List(task)
	body, err := submission.Serialize(task, entries, req.Placeholder, a.cfg.FPS)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if task == models.TaskTRAKE && submission.SpansVideos(entries) {
		a.logger.Warn("TRAKE board spans several videos, submitting under the first",
			"board_id", id, "video", entries[0].VideoName, "entries", len(entries))
	}

	flow := a.flows.get(id)
	if err := flow.wf.Prepare(task, body); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow.wf.Snapshot())
}

type sendRequest struct {
	EvaluationID string `json:"evaluation_id,omitempty"`
	SessionID    string `json:"session_id"`
}

func (a *api) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id is required")
		return
	}

	id := r.PathValue("id")
	if _, err := a.deps.Boards.Get(r.Context(), id); err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	if req.EvaluationID == "" {
		eval, err := evaluation.FirstEvaluation(r.Context(), a.deps.Eval, req.SessionID)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		req.EvaluationID = eval.ID
	}

	flow := a.flows.get(id)
	out, err := flow.wf.Send(r.Context(), a.deps.Eval, req.EvaluationID, req.SessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"outcome": out, "workflow": flow.wf.Snapshot()})
	case errors.Is(err, submission.ErrTimeout):
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":   "pending",
			"message":  err.Error(),
			"workflow": flow.wf.Snapshot(),
		})
	case out != nil:
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":    "submit_failed",
			"message":  err.Error(),
			"outcome":  out,
			"workflow": flow.wf.Snapshot(),
		})
	default:
		a.writeDomainError(w, r, err)
	}
}

func (a *api) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.deps.Boards.Get(r.Context(), id); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	flow := a.flows.get(id)
	if err := flow.wf.Acknowledge(); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow.wf.Snapshot())
}

func (a *api) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.deps.Boards.Get(r.Context(), id); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.flows.get(id).wf.Snapshot())
}
