package server

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/results"
	"github.com/kilupskalvis/vbs/internal/search"
	"github.com/kilupskalvis/vbs/internal/window"
)

type searchRequest struct {
	search.Query
	// Image is a data URL of the query image.
	Image      string   `json:"image,omitempty"`
	Exclude    string   `json:"exclude,omitempty"`
	Include    string   `json:"include,omitempty"`
	DropVideos []string `json:"drop_videos,omitempty"`
	Group      bool     `json:"group,omitempty"`
}

type searchResponse struct {
	Results []models.SearchResult `json:"results"`
	Groups  []results.Group       `json:"groups,omitempty"`
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	q := req.Query
	if req.Image != "" {
		data, _, err := search.DecodeDataURL(req.Image)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		q.Image = data
	}
	if q.TopK <= 0 {
		q.TopK = a.cfg.TopK
	}

	res, err := a.deps.Search.Search(r.Context(), &q)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	res = results.Exclude(req.Exclude, res)
	if req.Include != "" {
		res = results.Include(req.Include, res)
	}
	for _, v := range req.DropVideos {
		res = results.DeleteVideo(res, v)
	}
	if res == nil {
		res = []models.SearchResult{}
	}
	metricSearchResults.Observe(float64(len(res)))

	resp := searchResponse{Results: res}
	if req.Group {
		resp.Groups = results.GroupByVideo(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upper bounds for caller-supplied sizes.
const (
	maxWindowSide   = 1000
	maxStride       = 100_000
	maxFrameNumber  = 100_000_000
	maxTrakeRows    = 1000
	maxTrakeEpsilon = 100_000
)

type windowResponse struct {
	Reference string   `json:"reference"`
	Position  int      `json:"position"`
	Frames    []string `json:"frames"`
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{name: name, value: v}
	}
	return n, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " parameter: " + strconv.Quote(e.value)
}

func (a *api) handleWindow(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "path is required")
		return
	}
	ref, err := models.ParseFrameID(path)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	before, err := queryInt(r, "before", a.cfg.WindowBefore)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	after, err := queryInt(r, "after", a.cfg.WindowAfter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	stride, err := queryInt(r, "stride", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if before > maxWindowSide || after > maxWindowSide {
		writeError(w, http.StatusBadRequest, "bad_request", "before and after must be at most "+strconv.Itoa(maxWindowSide))
		return
	}
	if stride > maxStride {
		writeError(w, http.StatusBadRequest, "bad_request", "stride must be at most "+strconv.Itoa(maxStride))
		return
	}

	frames, err := window.Stride(a.deps.Catalog.Index, ref, stride, before, after)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	resp := windowResponse{Reference: ref.String(), Position: -1, Frames: make([]string, len(frames))}
	for i, f := range frames {
		resp.Frames[i] = f.String()
		if resp.Position < 0 && f == ref {
			resp.Position = i
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type frameMetaResponse struct {
	Key      string            `json:"key"`
	FPS      float64           `json:"fps"`
	Metadata *models.VideoMeta `json:"metadata,omitempty"`
	Watch    *models.WatchInfo `json:"watch,omitempty"`
}

func (a *api) handleFrameMeta(w http.ResponseWriter, r *http.Request) {
	video := r.URL.Query().Get("video")
	if video == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "video is required")
		return
	}
	frame, err := queryInt(r, "frame", -1)
	if err != nil || frame < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "frame must be a non-negative integer")
		return
	}

	key := models.MetadataKey(video, frame)
	resp := frameMetaResponse{Key: key, FPS: a.deps.Catalog.Metadata.FPS(key)}
	if meta, ok := a.deps.Catalog.Metadata.Lookup(key); ok {
		resp.Metadata = &meta
	}
	if watch, ok := a.deps.Catalog.Watch.Lookup(video); ok {
		resp.Watch = &watch
	}
	if resp.Metadata == nil && resp.Watch == nil {
		writeError(w, http.StatusNotFound, "not_found", "no metadata for "+key)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type centeredRequest struct {
	Frames  []string `json:"frames"`
	Current string   `json:"current"`
}

type centeredResponse struct {
	Frames []string `json:"frames"`
	Index  int      `json:"index"`
}

func (a *api) handleCentered(w http.ResponseWriter, r *http.Request) {
	var req centeredRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if _, err := models.ParseFrameID(req.Current); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	frames, idx := window.Centered(req.Frames, req.Current)
	writeJSON(w, http.StatusOK, centeredResponse{Frames: frames, Index: idx})
}

type trakeRequest struct {
	Anchors []int  `json:"anchors"`
	Step    int    `json:"step"`
	Epsilon *int   `json:"epsilon"`
	Rows    int    `json:"rows"`
	Seed    *int64 `json:"seed"`
}

func (a *api) handleTrakeVariations(w http.ResponseWriter, r *http.Request) {
	var req trakeRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(req.Anchors) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "anchors are required")
		return
	}
	for _, f := range req.Anchors {
		if f < 0 || f > maxFrameNumber {
			writeError(w, http.StatusBadRequest, "bad_request", "anchors must be between 0 and "+strconv.Itoa(maxFrameNumber))
			return
		}
	}

	epsilon := window.DefaultTrakeEpsilon
	if req.Epsilon != nil {
		epsilon = *req.Epsilon
	}
	if epsilon > maxTrakeEpsilon || req.Step > maxTrakeEpsilon {
		writeError(w, http.StatusBadRequest, "bad_request", "epsilon and step must be at most "+strconv.Itoa(maxTrakeEpsilon))
		return
	}
	rows := req.Rows
	if rows <= 0 {
		rows = window.DefaultTrakeRows
	}
	rows = min(rows, maxTrakeRows)
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	out := window.TrakeVariations(req.Anchors, req.Step, epsilon, rows, rand.New(rand.NewSource(seed)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": out})
}
