package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankFor(t *testing.T) {
	tests := []struct {
		streak int
		want   Rank
	}{
		{-3, RankI},
		{0, RankI},
		{6, RankI},
		{7, RankH},
		{13, RankH},
		{14, RankG},
		{29, RankG},
		{30, RankF},
		{49, RankF},
		{50, RankE},
		{70, RankD},
		{99, RankD},
		{100, RankC},
		{150, RankB},
		{200, RankA},
		{299, RankA},
		{300, RankS},
		{10000, RankS},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, RankFor(tc.streak), "streak %d", tc.streak)
	}
}

func TestRankForMonotonic(t *testing.T) {
	order := map[Rank]int{}
	for i, th := range thresholds {
		order[th.rank] = i
	}

	prev := order[RankFor(0)]
	for s := 1; s <= 400; s++ {
		cur := order[RankFor(s)]
		assert.GreaterOrEqual(t, cur, prev, "rank decreased at streak %d", s)
		prev = cur
	}
}

func TestTier(t *testing.T) {
	assert.Equal(t, "I", RankI.Tier())
	assert.Equal(t, "III", RankG.Tier())
	assert.Equal(t, "X", RankS.Tier())
	assert.Equal(t, "I", Rank("Z").Tier())
	assert.False(t, Rank("Z").Valid())
	assert.True(t, RankA.Valid())
}

func TestNext(t *testing.T) {
	tests := []struct {
		streak   int
		wantRank Rank
		wantDays int
	}{
		{0, RankH, 7},
		{3, RankH, 4},
		{7, RankG, 7},
		{14, RankF, 16},
		{299, RankS, 1},
		{300, RankS, 0},
		{512, RankS, 0},
	}

	for _, tc := range tests {
		r, d := Next(tc.streak)
		assert.Equal(t, tc.wantRank, r, "streak %d", tc.streak)
		assert.Equal(t, tc.wantDays, d, "streak %d", tc.streak)
	}
}

func TestThreeDayScenario(t *testing.T) {
	dates := []string{"2026-10-15", "2026-10-16", "2026-10-17"}
	n := Calc(dates, "2026-10-17")
	assert.Equal(t, 3, n)
	assert.Equal(t, RankI, RankFor(n))
}
