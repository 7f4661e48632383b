package streak

// Rank is an ordinal badge, I lowest through S highest.
type Rank string

const (
	RankI Rank = "I"
	RankH Rank = "H"
	RankG Rank = "G"
	RankF Rank = "F"
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

type threshold struct {
	min  int
	rank Rank
	tier string
}

// Ascending by min. The first entry covers every streak below 7.
var thresholds = []threshold{
	{0, RankI, "I"},
	{7, RankH, "II"},
	{14, RankG, "III"},
	{30, RankF, "IV"},
	{50, RankE, "V"},
	{70, RankD, "VI"},
	{100, RankC, "VII"},
	{150, RankB, "VIII"},
	{200, RankA, "IX"},
	{300, RankS, "X"},
}

// RankFor maps a streak length to its rank. Negative input is treated as 0.
func RankFor(streak int) Rank {
	r := RankI
	for _, t := range thresholds {
		if streak >= t.min {
			r = t.rank
		}
	}
	return r
}

// Tier returns the roman-numeral tier used for icon selection.
func (r Rank) Tier() string {
	for _, t := range thresholds {
		if t.rank == r {
			return t.tier
		}
	}
	return "I"
}

// Valid reports whether r is one of the ten labels.
func (r Rank) Valid() bool {
	for _, t := range thresholds {
		if t.rank == r {
			return true
		}
	}
	return false
}

// Next returns the next rank above the one streak maps to, and how many
// more days are needed to reach it. At the top it returns S and 0.
func Next(streak int) (Rank, int) {
	for _, t := range thresholds[1:] {
		if streak < t.min {
			return t.rank, t.min - streak
		}
	}
	return RankS, 0
}
