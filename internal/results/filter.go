// Package results post-processes ranked search results: video name
// filters, grouping by video and per-video removal.
package results

import (
	"regexp"
	"strings"

	"github.com/kilupskalvis/vbs/internal/models"
)

// Matcher tests video names against a filter pattern. Matching is
// case-insensitive; a pattern without '*' is a prefix, a pattern with '*'
// must match the whole name.
type Matcher struct {
	prefix string
	re     *regexp.Regexp
}

// NewMatcher compiles a filter pattern.
func NewMatcher(pattern string) *Matcher {
	p := strings.ToUpper(strings.TrimSpace(pattern))
	if !strings.Contains(p, "*") {
		return &Matcher{prefix: p}
	}
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return &Matcher{re: regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")}
}

// Match reports whether a video name matches the pattern.
func (m *Matcher) Match(video string) bool {
	v := strings.ToUpper(video)
	if m.re != nil {
		return m.re.MatchString(v)
	}
	return strings.HasPrefix(v, m.prefix)
}

// Exclude drops results whose video matches pattern. An empty pattern
// returns the input unchanged.
func Exclude(pattern string, in []models.SearchResult) []models.SearchResult {
	if strings.TrimSpace(pattern) == "" {
		return in
	}
	m := NewMatcher(pattern)
	out := make([]models.SearchResult, 0, len(in))
	for _, r := range in {
		if r.VideoName == "" || !m.Match(r.VideoName) {
			out = append(out, r)
		}
	}
	return out
}

// Include keeps only results whose video matches pattern. An empty pattern
// keeps nothing.
func Include(pattern string, in []models.SearchResult) []models.SearchResult {
	out := []models.SearchResult{}
	if strings.TrimSpace(pattern) == "" {
		return out
	}
	m := NewMatcher(pattern)
	for _, r := range in {
		if r.VideoName != "" && m.Match(r.VideoName) {
			out = append(out, r)
		}
	}
	return out
}
