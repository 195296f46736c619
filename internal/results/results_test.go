package results

import (
	"testing"

	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []models.SearchResult {
	return []models.SearchResult{
		{VideoName: "L21_V001", FrameIdx: 10, Score: 0.9},
		{VideoName: "L22_V003", FrameIdx: 5, Score: 0.8},
		{VideoName: "L21_V001", FrameIdx: 40, Score: 0.7},
		{VideoName: "K01_V010", FrameIdx: 1, Score: 0.95},
	}
}

func videos(in []models.SearchResult) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = r.VideoName
	}
	return out
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		video   string
		want    bool
	}{
		{"l21", "L21_V001", true},
		{"L21_V00", "L21_V001", true},
		{"V001", "L21_V001", false},
		{"*_V001", "L21_V001", true},
		{"L2*_V00?", "L21_V001", false},
		{"L2*", "l21_v001", true},
		{"L21.*", "L21_V001", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewMatcher(tt.pattern).Match(tt.video), "%s vs %s", tt.pattern, tt.video)
	}
}

func TestExclude(t *testing.T) {
	assert.Equal(t, sample(), Exclude("  ", sample()))
	assert.Equal(t, []string{"L22_V003", "K01_V010"}, videos(Exclude("l21", sample())))
	assert.Equal(t, []string{"L21_V001", "L22_V003", "L21_V001"}, videos(Exclude("K*", sample())))
}

func TestInclude(t *testing.T) {
	assert.Empty(t, Include("", sample()))
	assert.Equal(t, []string{"L21_V001", "L22_V003", "L21_V001"}, videos(Include("L2", sample())))
	assert.Equal(t, []string{"L22_V003"}, videos(Include("*V003", sample())))
}

func TestGroupByVideo(t *testing.T) {
	groups := GroupByVideo(sample())
	require.Len(t, groups, 3)
	assert.Equal(t, "L21_V001", groups[0].VideoName)
	assert.Equal(t, []int{10, 40}, []int{groups[0].Results[0].FrameIdx, groups[0].Results[1].FrameIdx})
	assert.Equal(t, "K01_V010", groups[2].VideoName)
	assert.Nil(t, GroupByVideo(nil))
}

func TestDeleteVideo(t *testing.T) {
	out := DeleteVideo(sample(), "L22_V003")
	assert.Equal(t, []string{"K01_V010", "L21_V001", "L21_V001"}, videos(out))
	assert.Equal(t, []float64{0.95, 0.9, 0.7}, []float64{out[0].Score, out[1].Score, out[2].Score})
	assert.Len(t, sample(), 4)
}
