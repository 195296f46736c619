package models

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ErrInvalidFramePath is returned when a keyframe path cannot be decoded.
var ErrInvalidFramePath = errors.New("invalid frame path")

// FrameID identifies a keyframe by collection, video and frame number.
// Its canonical form is collection/video/fNNNNNN.ext.
type FrameID struct {
	Collection string `json:"collection"`
	Video      string `json:"video"`
	Number     int    `json:"number"`
	Ext        string `json:"ext"` // without the leading dot
}

// ParseFrameID decodes a keyframe path. Only the last three segments are used,
// so absolute image paths such as /data/keyframes/Videos_L28_a/L28_V023/f007932.webp
// are accepted.
func ParseFrameID(p string) (FrameID, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 3 {
		return FrameID{}, fmt.Errorf("%w: %q", ErrInvalidFramePath, p)
	}
	n := len(parts)
	collection, video, file := parts[n-3], parts[n-2], parts[n-1]
	if collection == "" || video == "" {
		return FrameID{}, fmt.Errorf("%w: %q", ErrInvalidFramePath, p)
	}

	num, ext, err := ParseFrameFilename(file)
	if err != nil {
		return FrameID{}, fmt.Errorf("%w: %q", ErrInvalidFramePath, p)
	}

	return FrameID{Collection: collection, Video: video, Number: num, Ext: ext}, nil
}

// ParseFrameFilename decodes fNNNNNN.ext into the frame number and extension.
func ParseFrameFilename(name string) (int, string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if !strings.HasPrefix(base, "f") || len(base) < 2 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidFramePath, name)
	}
	num, err := strconv.Atoi(base[1:])
	if err != nil || num < 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidFramePath, name)
	}
	return num, strings.TrimPrefix(ext, "."), nil
}

// FrameFilename renders a frame number as fNNNNNN.ext.
func FrameFilename(number int, ext string) string {
	if ext == "" {
		return fmt.Sprintf("f%06d", number)
	}
	return fmt.Sprintf("f%06d.%s", number, ext)
}

// Filename returns the keyframe file name, e.g. f007932.webp.
func (f FrameID) Filename() string {
	return FrameFilename(f.Number, f.Ext)
}

// String returns the canonical collection/video/fNNNNNN.ext form.
func (f FrameID) String() string {
	return f.Collection + "/" + f.Video + "/" + f.Filename()
}

// WithNumber returns a copy of f pointing at another frame of the same video.
func (f FrameID) WithNumber(n int) FrameID {
	f.Number = n
	return f
}

// SameVideo reports whether two frames belong to the same collection and video.
func (f FrameID) SameVideo(o FrameID) bool {
	return f.Collection == o.Collection && f.Video == o.Video
}
