package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilupskalvis/vbs/internal/models"
)

// DefaultBaseURL is the public evaluation server API root.
const DefaultBaseURL = "https://eventretrieval.oj.io.vn/api/v2"

var (
	// ErrInvalidRequest is returned before any I/O when required inputs are missing.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoEvaluation is returned when a session has no active evaluation.
	ErrNoEvaluation = errors.New("evaluation ID not found in response")
)

// Client defines the contract for talking to the evaluation server.
type Client interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Evaluations(ctx context.Context, sessionID string) ([]models.Evaluation, error)
	Submit(ctx context.Context, evaluationID, sessionID string, body *RequestBody) (*SubmitResponse, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an evaluation server client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *HTTPClient) doJSON(ctx context.Context, method, url string, reqBody interface{}) (*http.Response, error) {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// Login exchanges credentials for a session.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}

	resp, err := c.doJSON(ctx, http.MethodPost, c.endpoint("/login", nil), &LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp, "login failed")
	}

	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("login: session ID not found in response")
	}
	return &session, nil
}

// Evaluations lists the evaluations visible to a session.
func (c *HTTPClient) Evaluations(ctx context.Context, sessionID string) ([]models.Evaluation, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidRequest)
	}

	endpoint := c.endpoint("/client/evaluation/list", url.Values{"session": {sessionID}})
	resp, err := c.doJSON(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp, "failed to get evaluation ID")
	}

	var evals []models.Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&evals); err != nil {
		return nil, fmt.Errorf("decode evaluations: %w", err)
	}
	return evals, nil
}

// Submit posts an answer body to an evaluation.
func (c *HTTPClient) Submit(ctx context.Context, evaluationID, sessionID string, body *RequestBody) (*SubmitResponse, error) {
	if evaluationID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: evaluation ID and session ID are required", ErrInvalidRequest)
	}
	if body == nil || len(body.AnswerSets) == 0 {
		return nil, fmt.Errorf("%w: submission body must contain answerSets", ErrInvalidRequest)
	}

	endpoint := c.endpoint("/submit/"+url.PathEscape(evaluationID), url.Values{"session": {sessionID}})
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, newRemoteError(resp, data, "submission failed")
	}

	out := &SubmitResponse{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	if json.Valid(data) {
		out.Data = data
	}
	return out, nil
}

// FirstEvaluation returns the first evaluation of a session, the one the
// submission panel auto-fills.
func FirstEvaluation(ctx context.Context, c Client, sessionID string) (*models.Evaluation, error) {
	evals, err := c.Evaluations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(evals) == 0 || evals[0].ID == "" {
		return nil, fmt.Errorf("%w: check that the session has access to an active evaluation", ErrNoEvaluation)
	}
	return &evals[0], nil
}

// RemoteError represents an error status from the evaluation server.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("evaluation server error (%d): %s", e.Status, e.Message)
}

func decodeError(resp *http.Response, fallback string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return newRemoteError(resp, data, fallback)
}

func newRemoteError(resp *http.Response, data []byte, fallback string) error {
	var errResp ErrorResponse
	msg := ""
	if err := json.Unmarshal(data, &errResp); err == nil {
		msg = errResp.Detail
		if msg == "" {
			msg = errResp.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("%s: %d %s", fallback, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &RemoteError{Status: resp.StatusCode, Message: msg}
}
