package server

import (
	"net/http"

	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/models"
)

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req evaluation.LoginRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	session, err := a.deps.Eval.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.logger.Info("evaluation login", "username", session.Username, "request_id", requestID(r))
	writeJSON(w, http.StatusOK, session)
}

func (a *api) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session is required")
		return
	}
	evals, err := a.deps.Eval.Evaluations(r.Context(), session)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if evals == nil {
		evals = []models.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}
