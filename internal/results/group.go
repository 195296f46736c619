package results

import (
	"cmp"
	"slices"

	"github.com/kilupskalvis/vbs/internal/models"
)

// Group is the results of one video, in rank order.
type Group struct {
	VideoName string                `json:"video_name"`
	Results   []models.SearchResult `json:"results"`
}

// GroupByVideo groups results by video in order of first appearance.
func GroupByVideo(in []models.SearchResult) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, r := range in {
		i, ok := index[r.VideoName]
		if !ok {
			i = len(groups)
			index[r.VideoName] = i
			groups = append(groups, Group{VideoName: r.VideoName})
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

// Flatten concatenates groups back into one list.
func Flatten(groups []Group) []models.SearchResult {
	var out []models.SearchResult
	for _, g := range groups {
		out = append(out, g.Results...)
	}
	return out
}

// DeleteVideo removes every result of a video and ranks the rest by
// descending score.
func DeleteVideo(in []models.SearchResult, video string) []models.SearchResult {
	groups := slices.DeleteFunc(GroupByVideo(in), func(g Group) bool { return g.VideoName == video })
	out := Flatten(groups)
	slices.SortStableFunc(out, func(a, b models.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}
