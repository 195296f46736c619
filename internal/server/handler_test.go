package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/vbs/internal/boardstore"
	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/search"
	"github.com/kilupskalvis/vbs/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSearcher returns canned results and records the last query.
type stubSearcher struct {
	results []models.SearchResult
	last    *search.Query
	err     error
}

func (s *stubSearcher) Search(_ context.Context, q *search.Query) ([]models.SearchResult, error) {
	if q.Empty() {
		return nil, search.ErrEmptyQuery
	}
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.SearchResult(nil), s.results...), nil
}

// stubEval implements evaluation.Client for tests.
type stubEval struct {
	mu      sync.Mutex
	bodies  []*evaluation.RequestBody
	release chan struct{}
	err     error
}

func (s *stubEval) Login(_ context.Context, username, password string) (*models.Session, error) {
	if password != "secret" {
		return nil, &evaluation.RemoteError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return &models.Session{SessionID: "sess-1", Username: username}, nil
}

func (s *stubEval) Evaluations(_ context.Context, sessionID string) ([]models.Evaluation, error) {
	return []models.Evaluation{{ID: "eval-1", Name: "Day 1"}}, nil
}

func (s *stubEval) Submit(_ context.Context, evaluationID, sessionID string, body *evaluation.RequestBody) (*evaluation.SubmitResponse, error) {
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &evaluation.SubmitResponse{Status: 200, StatusText: "OK", Data: json.RawMessage(`{"submission":"CORRECT"}`)}, nil
}

type testEnv struct {
	srv     *httptest.Server
	search  *stubSearcher
	eval    *stubEval
	boards  *boardstore.BboltStore
	history *history.Store
	cfg     *ServerConfig
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	files := make([]string, 100)
	for i := range files {
		files[i] = models.FrameFilename(i, "webp")
	}
	idx, err := catalog.NewGroupedIndex(map[string]map[string][]string{
		"K": {"V1": files, "V2": {"f000000.webp", "f000010.webp"}},
	})
	require.NoError(t, err)
	return &catalog.Catalog{
		Index: idx,
		Metadata: catalog.NewVideoMetadata(map[string]models.VideoMeta{
			"V1_000050": {FPS: 25, FrameIdx: 50, PTSTime: 2.0},
		}),
		Watch: catalog.NewWatchIndex(map[string]models.WatchInfo{
			"V1": {WatchURL: "https://youtube.com/watch?v=abc"},
		}),
	}
}

func newTestEnv(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	boards, err := boardstore.NewBboltStore(filepath.Join(dir, "boards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { boards.Close() })

	hist, err := history.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	env := &testEnv{
		search:  &stubSearcher{},
		eval:    &stubEval{},
		boards:  boards,
		history: hist,
		cfg:     DefaultServerConfig(),
	}
	env.cfg.RequestsPerMinute = 0
	if mutate != nil {
		mutate(env.cfg)
	}

	h, cleanup := Handler(Deps{
		Catalog: testCatalog(t),
		Search:  env.search,
		Eval:    env.eval,
		Boards:  boards,
		History: hist,
	}, env.cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(cleanup)

	env.srv = httptest.NewServer(h)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if e.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.AccessToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) createBoard(t *testing.T) string {
	t.Helper()
	var board boardstore.Board
	require.Equal(t, http.StatusCreated, e.do(t, "POST", "/api/v1/boards", map[string]string{"name": "team"}, &board))
	require.NotEmpty(t, board.ID)
	return board.ID
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(env.srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), "vbs_search_results")
}

func TestWindow_ShiftsLeftAtVideoEnd(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp windowResponse
	status := env.do(t, "GET", "/api/v1/frames/window?path=/data/K/V1/f000050.webp", nil, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Frames, 100)
	assert.Equal(t, "K/V1/f000000.webp", resp.Frames[0])
	assert.Equal(t, "K/V1/f000099.webp", resp.Frames[99])
	assert.Equal(t, 50, resp.Position)
}

func TestWindow_Stride(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp windowResponse
	status := env.do(t, "GET", "/api/v1/frames/window?path=K/V1/f000010.webp&before=2&after=2&stride=5", nil, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"K/V1/f000010.webp", "K/V1/f000015.webp", "K/V1/f000005.webp", "K/V1/f000020.webp", "K/V1/f000000.webp"}, resp.Frames)
	assert.Equal(t, 0, resp.Position)
}

func TestWindow_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	var errResp map[string]string
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/frames/window?path=K/V9/f000001.webp", nil, &errResp))
	assert.Equal(t, "not_found", errResp["error"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/window?path=garbage", nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/window?path=K/V1/f000001.webp&before=x", nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/window?path=K/V1/f000001.webp&stride=-1", nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/window?path=K/V1/f000001.webp&stride=9223372036854775807", nil, &errResp))
	assert.Contains(t, errResp["message"], "stride must be at most")
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/window", nil, &errResp))
}

func TestFrameMeta(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp frameMetaResponse
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/frames/meta?video=V1&frame=50", nil, &resp))
	assert.Equal(t, "V1_000050", resp.Key)
	assert.Equal(t, 25.0, resp.FPS)
	require.NotNil(t, resp.Watch)
	assert.Equal(t, "https://youtube.com/watch?v=abc", resp.Watch.WatchURL)

	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/frames/meta?video=V1&frame=7", nil, &resp))
	assert.Nil(t, resp.Metadata)
	assert.Equal(t, float64(catalog.DefaultVideoFPS), resp.FPS)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/frames/meta?video=V9&frame=1", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/frames/meta?video=V1", nil, nil))
}

func TestCenteredAndTrake(t *testing.T) {
	env := newTestEnv(t, nil)

	var centered centeredResponse
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/frames/centered", centeredRequest{
		Frames:  []string{"K/V1/f000030.webp", "K/V2/f000001.webp", "K/V1/f000010.webp", "K/V1/f000020.webp"},
		Current: "K/V1/f000020.webp",
	}, &centered))
	assert.Equal(t, []string{"K/V1/f000010.webp", "K/V1/f000020.webp", "K/V1/f000030.webp"}, centered.Frames)
	assert.Equal(t, 1, centered.Index)

	seed := int64(7)
	var trake struct {
		Rows [][]int `json:"rows"`
	}
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/trake/variations", trakeRequest{Anchors: []int{100, 200}, Rows: 10, Seed: &seed}, &trake))
	require.Len(t, trake.Rows, 10)
	assert.Equal(t, []int{100, 200}, trake.Rows[0])

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/trake/variations", trakeRequest{}, nil))
}

func TestTrake_Bounds(t *testing.T) {
	env := newTestEnv(t, nil)
	seed := int64(1)
	huge := math.MaxInt

	var errResp map[string]string
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/trake/variations",
		trakeRequest{Anchors: []int{0}, Epsilon: &huge, Rows: 100, Seed: &seed}, &errResp))
	assert.Contains(t, errResp["message"], "epsilon")
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/trake/variations",
		trakeRequest{Anchors: []int{0}, Step: huge, Seed: &seed}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/trake/variations",
		trakeRequest{Anchors: []int{huge}, Seed: &seed}, nil))

	// The largest accepted epsilon near frame zero still answers promptly.
	eps := maxTrakeEpsilon
	var trake struct {
		Rows [][]int `json:"rows"`
	}
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/trake/variations",
		trakeRequest{Anchors: []int{0, 5}, Step: 1, Epsilon: &eps, Rows: maxTrakeRows, Seed: &seed}, &trake))
	require.Len(t, trake.Rows, maxTrakeRows)
	assert.Equal(t, []int{1, 6}, trake.Rows[1])
}

func TestSearch_FiltersAndGroups(t *testing.T) {
	env := newTestEnv(t, nil)
	env.search.results = []models.SearchResult{
		{VideoName: "L21_V001", FrameIdx: 1, Score: 0.9},
		{VideoName: "L22_V001", FrameIdx: 2, Score: 0.8},
		{VideoName: "L21_V002", FrameIdx: 3, Score: 0.95},
		{VideoName: "L21_V001", FrameIdx: 4, Score: 0.7},
	}

	var resp searchResponse
	status := env.do(t, "POST", "/api/v1/search", map[string]interface{}{
		"text":        "a red car",
		"image":       "data:image/png;base64,aGVsbG8=",
		"exclude":     "L22",
		"drop_videos": []string{"L21_V002"},
		"group":       true,
	}, &resp)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].FrameIdx)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "L21_V001", resp.Groups[0].VideoName)

	require.NotNil(t, env.search.last)
	assert.Equal(t, []byte("hello"), env.search.last.Image)
	assert.Equal(t, env.cfg.TopK, env.search.last.TopK)

	var errResp map[string]string
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/search", map[string]string{}, &errResp))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/v1/search", map[string]string{"text": "x", "image": "nope"}, &errResp))
}

func TestSearch_BackendFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.search.err = &search.BackendError{Status: http.StatusOK, Message: "index offline"}

	var resp map[string]interface{}
	require.Equal(t, http.StatusBadGateway, env.do(t, "POST", "/api/v1/search", map[string]string{"text": "x"}, &resp))
	assert.Equal(t, "search_error", resp["error"])
	assert.Equal(t, "index offline", resp["message"])
}

func TestBoards_CRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createBoard(t)

	var boards []boardstore.Board
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards", nil, &boards))
	assert.Len(t, boards, 1)

	var board boardstore.Board
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards/"+id, nil, &board))
	assert.Equal(t, "team", board.Name)
	assert.Equal(t, models.TaskKIS, board.State.Current)

	assert.Equal(t, http.StatusNoContent, env.do(t, "DELETE", "/api/v1/boards/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/boards/"+id, nil, nil))
}

func TestBoards_TrakeCrossVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createBoard(t)

	var board boardstore.Board
	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/v1/boards/"+id+"/task", map[string]string{"task": "trake"}, &board))
	assert.Equal(t, models.TaskTRAKE, board.State.Current)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"video_name": "V1", "frame_idx": 10}, &board))
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"path": "K/V1/f000005.webp"}, &board))
	assert.Equal(t, []int{5, 10}, board.State.TRAKE[0].Frames)

	var errResp map[string]string
	require.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"video_name": "V2", "frame_idx": 1}, &errResp))
	assert.Equal(t, "cross_video", errResp["error"])
	assert.Equal(t, "V1", errResp["existing_video"])
	assert.Equal(t, "V2", errResp["attempted_video"])

	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards/"+id, nil, &board))
	assert.Equal(t, []models.Entry{{VideoName: "V1", Frames: []int{5, 10}}}, board.State.TRAKE)
}

func TestBoards_FramesetFromWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createBoard(t)

	var board boardstore.Board
	status := env.do(t, "POST", "/api/v1/boards/"+id+"/frameset", map[string]interface{}{
		"task":   "trake",
		"window": map[string]interface{}{"path": "K/V1/f000050.webp", "before": 2, "after": 2},
	}, &board)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []models.Entry{{VideoName: "V1", Frames: []int{48, 49, 50, 51, 52}}}, board.State.TRAKE)

	status = env.do(t, "POST", "/api/v1/boards/"+id+"/frameset", map[string]interface{}{
		"task":   "trake",
		"frames": []models.Frame{{VideoName: "V1", FrameIdx: 3}, {VideoName: "V2", FrameIdx: 1}},
	}, &board)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, board.State.TRAKE, 2)
}

func TestBoards_AnswerAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createBoard(t)

	var board boardstore.Board
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"task": "qa", "video_name": "L21_V001", "frame_idx": 273}, &board))
	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/v1/boards/"+id+"/answer", map[string]interface{}{"index": 0, "answer": "ambulance"}, &board))
	assert.Equal(t, "ambulance", board.State.QA[0].Answer)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/v1/boards/"+id+"/answer", map[string]interface{}{"index": 4, "answer": "x"}, nil))

	require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/v1/boards/"+id+"/entries?task=qa", nil, &board))
	assert.Empty(t, board.State.QA)
}

func TestSubmission_PrepareSendAck(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createBoard(t)

	var errResp map[string]string
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, "POST", "/api/v1/boards/"+id+"/prepare", nil, &errResp))
	assert.Equal(t, "empty_selection", errResp["error"])

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"task": "qa", "video_name": "L21_V001", "frame_idx": 273}, nil))

	var snap submission.Snapshot
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/prepare", map[string]string{"task": "qa", "placeholder": "ambulance"}, &snap))
	assert.Equal(t, submission.PhasePreviewBuilt, snap.Phase)
	assert.Equal(t, "QA-ambulance-L21_V001-10920", snap.Preview.AnswerSets[0].Answers[0].Text)

	var sent struct {
		Outcome  submission.Outcome  `json:"outcome"`
		Workflow submission.Snapshot `json:"workflow"`
	}
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/send", sendRequest{SessionID: "sess-1"}, &sent))
	assert.Equal(t, "eval-1", sent.Outcome.EvaluationID)
	assert.Equal(t, submission.PhaseSucceeded, sent.Workflow.Phase)

	var records []history.Record
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards/"+id+"/history", nil, &records))
	require.Len(t, records, 1)
	assert.Equal(t, models.TaskQA, records[0].Task)
	assert.Equal(t, 200, records[0].Status)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/ack", nil, &snap))
	assert.Equal(t, submission.PhaseIdle, snap.Phase)

	require.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/v1/boards/"+id+"/send", sendRequest{SessionID: "sess-1"}, &errResp))
	assert.Equal(t, "invalid_transition", errResp["error"])
}

func TestSubmission_Failure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.eval.err = &evaluation.RemoteError{Status: 400, Message: "duplicate"}
	id := env.createBoard(t)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"video_name": "L21_V001", "frame_idx": 25}, nil))
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/prepare", nil, nil))

	var resp struct {
		Error    string              `json:"error"`
		Workflow submission.Snapshot `json:"workflow"`
	}
	require.Equal(t, http.StatusBadGateway, env.do(t, "POST", "/api/v1/boards/"+id+"/send", sendRequest{EvaluationID: "eval-9", SessionID: "s"}, &resp))
	assert.Equal(t, "submit_failed", resp.Error)
	assert.Equal(t, submission.PhaseFailed, resp.Workflow.Phase)
}

func TestSubmission_Timeout(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.SubmitTimeout = 20 * time.Millisecond })
	env.eval.release = make(chan struct{})
	id := env.createBoard(t)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"video_name": "V1", "frame_idx": 1}, nil))
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/prepare", nil, nil))

	var pending struct {
		Status   string              `json:"status"`
		Workflow submission.Snapshot `json:"workflow"`
	}
	require.Equal(t, http.StatusAccepted, env.do(t, "POST", "/api/v1/boards/"+id+"/send", sendRequest{SessionID: "s"}, &pending))
	assert.Equal(t, "pending", pending.Status)
	assert.Equal(t, submission.PhaseIdle, pending.Workflow.Phase)
	assert.True(t, pending.Workflow.TimedOut)

	// Preparing another task while the first request is pending keeps its label.
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/frames", map[string]interface{}{"task": "trake", "video_name": "V1", "frame_idx": 5}, nil))
	var snap submission.Snapshot
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/boards/"+id+"/prepare", map[string]string{"task": "trake"}, &snap))
	assert.Equal(t, models.TaskTRAKE, snap.Task)

	close(env.eval.release)
	var records []history.Record
	require.Eventually(t, func() bool {
		records = nil
		env.do(t, "GET", "/api/v1/boards/"+id+"/history", nil, &records)
		return len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards/"+id+"/workflow", nil, &snap))
	require.NotNil(t, snap.Last)
	assert.True(t, snap.Last.Late)
	assert.Equal(t, models.TaskKIS, snap.Last.Task)
	assert.Equal(t, models.TaskKIS, records[0].Task)
	assert.True(t, records[0].Late)
}

func TestEvalLoginAndEvaluations(t *testing.T) {
	env := newTestEnv(t, nil)

	var session models.Session
	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/eval/login", evaluation.LoginRequest{Username: "team01", Password: "secret"}, &session))
	assert.Equal(t, "sess-1", session.SessionID)

	var errResp map[string]interface{}
	require.Equal(t, http.StatusBadGateway, env.do(t, "POST", "/api/v1/eval/login", evaluation.LoginRequest{Username: "team01", Password: "x"}, &errResp))
	assert.Equal(t, float64(401), errResp["upstream_status"])

	var evals []models.Evaluation
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/eval/evaluations?session=sess-1", nil, &evals))
	assert.Equal(t, "eval-1", evals[0].ID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/eval/evaluations", nil, nil))
}

func TestAccessToken(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.AccessToken = "team-token" })

	resp, err := http.Get(env.srv.URL + "/api/v1/boards")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/boards", nil, nil))

	resp, err = http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminPrune(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.AdminToken = "admin-secret" })
	id := env.createBoard(t)

	req, _ := http.NewRequest("POST", env.srv.URL+"/admin/boards/prune?ttl=1h", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest("POST", env.srv.URL+"/admin/boards/prune?ttl=1h", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var result PruneResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, result.Pruned)

	req, _ = http.NewRequest("POST", env.srv.URL+"/admin/boards/prune?ttl=1ns", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	time.Sleep(time.Millisecond)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, []string{id}, result.Pruned)
}

func TestAdminClient_Prune(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.AdminToken = "admin-secret" })
	env.createBoard(t)

	res, err := NewAdminClient(env.srv.URL, "admin-secret").Prune(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, res.Pruned)

	_, err = NewAdminClient(env.srv.URL, "wrong").Prune(context.Background(), time.Hour)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "auth_failed", apiErr.Code)
}
