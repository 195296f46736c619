// Package search is a client for the multi-modal keyframe search backend.
package search

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilupskalvis/vbs/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTopK    = 100
)

var (
	ErrEmptyQuery     = errors.New("search query has no text, image or mask")
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// Query is a multi-modal search request.
type Query struct {
	Text       string             `json:"text,omitempty"`
	OCR        string             `json:"ocr,omitempty"`
	Localized  string             `json:"localized,omitempty"`
	ASR        string             `json:"asr,omitempty"`
	ObjectMask json.RawMessage    `json:"obj_mask,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Image      []byte             `json:"-"`
	ImageName  string             `json:"image_name,omitempty"`
	ImageURL   string             `json:"image_url,omitempty"`
	TopK       int                `json:"top_k,omitempty"`
}

// Empty reports whether the query carries no search input at all.
func (q *Query) Empty() bool {
	return strings.TrimSpace(q.Text) == "" &&
		strings.TrimSpace(q.OCR) == "" &&
		strings.TrimSpace(q.Localized) == "" &&
		strings.TrimSpace(q.ASR) == "" &&
		len(q.ObjectMask) == 0 &&
		len(q.Image) == 0 &&
		q.ImageURL == ""
}

type response struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Results []models.SearchResult `json:"results"`
}

// BackendError is a failure reported by the search backend, either as an
// HTTP error status or as an unsuccessful response body.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("search backend error (%d): %s", e.Status, e.Message)
}

// Client talks to the search backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a search backend client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search runs a query and returns the ranked results.
func (c *Client) Search(ctx context.Context, q *Query) ([]models.SearchResult, error) {
	if q == nil || q.Empty() {
		return nil, ErrEmptyQuery
	}

	body, contentType, err := encodeForm(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search-entry", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		msg := "multi-modal search request failed"
		if json.Unmarshal(data, &errResp) == nil && errResp.Detail != "" {
			msg = errResp.Detail
		}
		return nil, &BackendError{Status: resp.StatusCode, Message: msg}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "multi-modal search failed"
		}
		return nil, &BackendError{Status: resp.StatusCode, Message: msg}
	}
	return out.Results, nil
}

func encodeForm(q *Query) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	fields := [][2]string{
		{"top_k", strconv.Itoa(topK)},
		{"text", strings.TrimSpace(q.Text)},
		{"ocr", strings.TrimSpace(q.OCR)},
		{"localized", strings.TrimSpace(q.Localized)},
		{"asr", strings.TrimSpace(q.ASR)},
		{"obj_mask", string(q.ObjectMask)},
	}
	if len(q.Weights) > 0 {
		data, err := json.Marshal(q.Weights)
		if err != nil {
			return nil, "", fmt.Errorf("marshal weights: %w", err)
		}
		fields = append(fields, [2]string{"weight_dict", string(data)})
	}
	if len(q.Image) == 0 && q.ImageURL != "" {
		fields = append(fields, [2]string{"img_url", q.ImageURL})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if len(q.Image) > 0 {
		name := q.ImageName
		if name == "" {
			name = "image.jpg"
		}
		part, err := w.CreateFormFile("img", name)
		if err != nil {
			return nil, "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(q.Image); err != nil {
			return nil, "", fmt.Errorf("write image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// DecodeDataURL decodes a base64 data URL into its bytes and media type.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}

	mime := "application/octet-stream"
	params := strings.Split(meta, ";")
	if params[0] != "" {
		mime = params[0]
	}
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		return []byte(text), mime, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, mime, nil
}
