package weekly

// Days is the length of the aggregation window.
const Days = 7

// Entry is the part of a study log the aggregator reads.
type Entry struct {
	Date    string
	Subject string
	Minutes int
	Memo    string
}

// Day is one bucket of the summary.
type Day struct {
	Sums map[string]int `json:"sums"`
	Memo string         `json:"memo,omitempty"`
}

// Total returns the minutes summed over all subjects.
func (d *Day) Total() int {
	n := 0
	for _, v := range d.Sums {
		n += v
	}
	return n
}

type Summary struct {
	Days   []string        `json:"days"`
	ByDate map[string]*Day `json:"by_date"`
}

// Aggregate buckets entries into days. Entries outside days are ignored.
// A memo breakdown takes precedence over the entry's own subject/minutes
// pair; minutes accumulate, they never overwrite.
func Aggregate(days []string, entries []Entry) Summary {
	s := Summary{Days: days, ByDate: make(map[string]*Day, len(days))}
	for _, d := range days {
		s.ByDate[d] = &Day{Sums: map[string]int{}}
	}

	for _, e := range entries {
		day, ok := s.ByDate[e.Date]
		if !ok {
			continue
		}

		sums, free := ParseMemo(e.Memo)
		if len(sums) == 0 && e.Subject != "" && e.Minutes > 0 {
			day.Sums[e.Subject] += e.Minutes
		}
		for subj, min := range sums {
			day.Sums[subj] += min
		}
		if free != "" {
			day.Memo = free
		}
	}
	return s
}

// EntryMinutes is the minutes an entry contributes to totals: its memo
// breakdown when present, otherwise its own minutes.
func EntryMinutes(e Entry) int {
	sums, _ := ParseMemo(e.Memo)
	if len(sums) == 0 {
		return e.Minutes
	}
	n := 0
	for _, v := range sums {
		n += v
	}
	return n
}

// Highlight is a day chosen for display.
type Highlight struct {
	Date string `json:"date"`
	Memo string `json:"memo"`
}

// Intn is satisfied by *math/rand.Rand.
type Intn interface {
	Intn(n int) int
}

// PickHighlight selects one day with a narrative at random, or nil when no
// day has one. The choice changes between calls on purpose.
func PickHighlight(s Summary, rng Intn) *Highlight {
	var candidates []string
	for _, d := range s.Days {
		if day := s.ByDate[d]; day != nil && day.Memo != "" {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	d := candidates[rng.Intn(len(candidates))]
	return &Highlight{Date: d, Memo: s.ByDate[d].Memo}
}
