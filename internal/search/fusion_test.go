package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_EmptyCandidatesReturnsNil(t *testing.T) {
	assert.Nil(t, Fuse(nil, 0.5))
}

func TestFuse_SingleCandidateSkipsNormalization(t *testing.T) {
	out := Fuse([]Candidate{{ID: "a", VectorRaw: 0.37, BM25Raw: 5.2}}, 0.5)
	require := assert.New(t)
	require.Len(out, 1)
	require.InDelta(0.5*0.37+0.5*5.2, out[0].Score, 1e-9)
}

func TestFuse_MinMaxNormalizesAcrossCandidateSet(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", VectorRaw: 1.0, BM25Raw: 0.0},
		{ID: "b", VectorRaw: 0.0, BM25Raw: 1.0},
	}
	out := Fuse(candidates, 0.5)
	assert.Len(t, out, 2)
	for _, f := range out {
		assert.InDelta(t, 0.5, f.Score, 1e-9)
	}
}

func TestFuse_ZeroSpanCollapsesToZero(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", VectorRaw: 3.0, BM25Raw: 3.0},
		{ID: "b", VectorRaw: 3.0, BM25Raw: 3.0},
	}
	out := Fuse(candidates, 0.5)
	for _, f := range out {
		assert.Equal(t, 0.0, f.Score)
	}
}

func TestFuse_TiesBreakByIDAscending(t *testing.T) {
	candidates := []Candidate{
		{ID: "z", VectorRaw: 1, BM25Raw: 1},
		{ID: "a", VectorRaw: 1, BM25Raw: 1},
	}
	out := Fuse(candidates, 0.5)
	assert.Equal(t, "a", out[0].ID)
}

func TestFuse_SortedDescendingByScore(t *testing.T) {
	candidates := []Candidate{
		{ID: "low", VectorRaw: 0.1, BM25Raw: 0.1},
		{ID: "high", VectorRaw: 0.9, BM25Raw: 0.9},
		{ID: "mid", VectorRaw: 0.5, BM25Raw: 0.5},
	}
	out := Fuse(candidates, 0.5)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].ID, out[1].ID, out[2].ID})
}
