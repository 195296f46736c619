package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_MultipartFields(t *testing.T) {
	var form map[string][]string
	var image []byte
	var imageName string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search-entry", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm.Value
		if files := r.MultipartForm.File["img"]; len(files) == 1 {
			imageName = files[0].Filename
			f, err := files[0].Open()
			require.NoError(t, err)
			image, _ = io.ReadAll(f)
			f.Close()
		}
		_, _ = w.Write([]byte(`{"success":true,"results":[{"video_name":"L21_V001","frame_idx":273,"image_path":"Videos_L21_a/L21_V001/f000273.webp","score":0.91}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Search(context.Background(), &Query{
		Text:    "  a man riding a bike ",
		OCR:     "HTV",
		Weights: map[string]float64{"text": 0.7, "ocr": 0.3},
		Image:   []byte("jpegbytes"),
		TopK:    50,
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 273, res[0].FrameIdx)

	assert.Equal(t, []string{"50"}, form["top_k"])
	assert.Equal(t, []string{"a man riding a bike"}, form["text"])
	assert.Equal(t, []string{"HTV"}, form["ocr"])
	assert.NotContains(t, form, "localized")
	assert.NotContains(t, form, "img_url")

	var weights map[string]float64
	require.NoError(t, json.Unmarshal([]byte(form["weight_dict"][0]), &weights))
	assert.Equal(t, 0.7, weights["text"])

	assert.Equal(t, "image.jpg", imageName)
	assert.Equal(t, []byte("jpegbytes"), image)
}

func TestSearch_ImageURLAndDefaults(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm.Value
		_, _ = w.Write([]byte(`{"success":true,"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Search(context.Background(), &Query{ImageURL: "http://img/x.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, form["top_k"])
	assert.Equal(t, []string{"http://img/x.jpg"}, form["img_url"])
}

func TestSearch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		switch r.FormValue("text") {
		case "http":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"text too long"}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"message":"index not loaded"}`))
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	_, err := c.Search(context.Background(), &Query{Text: "http"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusUnprocessableEntity, be.Status)
	assert.Equal(t, "text too long", be.Message)

	_, err = c.Search(context.Background(), &Query{Text: "other"})
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusOK, be.Status)
	assert.Equal(t, "index not loaded", be.Message)

	_, err = c.Search(context.Background(), &Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestDecodeDataURL(t *testing.T) {
	data, mime, err := DecodeDataURL("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("hello"), data)

	data, mime, err = DecodeDataURL("data:,hi%20there")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mime)
	assert.Equal(t, "hi there", string(data))

	_, _, err = DecodeDataURL("image/png;base64,aGVsbG8=")
	assert.ErrorIs(t, err, ErrInvalidDataURL)

	_, _, err = DecodeDataURL("data:image/png;base64,@@@")
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}
