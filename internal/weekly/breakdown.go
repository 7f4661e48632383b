// Package weekly parses subject breakdowns out of study memos and
// aggregates a user's logs over a trailing window of days.
package weekly

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Subjects is the closed vocabulary recognized in breakdown annotations,
// in display order. その他 is the catch-all.
var Subjects = []string{"数学", "英語", "国語", "理科", "社会", "情報", "宿題", "その他"}

// BreakdownHeader starts the structured section of a memo.
const BreakdownHeader = "内訳"

var (
	annotationRe = regexp.MustCompile(`(?:^|[^\x{4E00}-\x{9FA5}A-Za-z0-9_])(` + strings.Join(Subjects, "|") + `)[\s\x{3000}]*[：:][\s\x{3000}]*(\d{1,4})[\s\x{3000}]*分`)
	headerRe     = regexp.MustCompile(`(?:^|\n)[\s\x{3000}]*` + BreakdownHeader + `[\s\x{3000}]*[：:]`)
)

// IsSubject reports whether s is in the vocabulary.
func IsSubject(s string) bool {
	for _, v := range Subjects {
		if v == s {
			return true
		}
	}
	return false
}

// Item is one subject/minutes pair of a breakdown.
type Item struct {
	Subject string
	Minutes int
}

// ParseMemo extracts per-subject minutes and the freeform narrative from a
// memo. Annotations count only after the breakdown header; the narrative is
// the text before it with trailing whitespace trimmed from each line. A memo
// without a header has no sums and is all narrative.
func ParseMemo(memo string) (map[string]int, string) {
	sums := make(map[string]int)
	if memo == "" {
		return sums, ""
	}

	free := memo
	if loc := headerRe.FindStringIndex(memo); loc != nil {
		free = memo[:loc[0]]
		for _, m := range annotationRe.FindAllStringSubmatch(memo[loc[0]:], -1) {
			min, err := strconv.Atoi(m[2])
			if err != nil || min <= 0 {
				continue
			}
			sums[m[1]] += min
		}
	}
	lines := strings.Split(strings.ReplaceAll(free, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\u3000")
	}
	return sums, strings.TrimSpace(strings.Join(lines, "\n"))
}

// BuildMemo appends a breakdown section for items with positive minutes to
// the user's memo, separated by a blank line.
func BuildMemo(memo string, items []Item) string {
	var parts []string
	for _, it := range items {
		if it.Minutes > 0 && it.Subject != "" {
			parts = append(parts, fmt.Sprintf("%s:%d分", it.Subject, it.Minutes))
		}
	}
	if len(parts) == 0 {
		return memo
	}
	detail := BreakdownHeader + ": " + strings.Join(parts, " / ")
	if memo == "" {
		return detail
	}
	return memo + "\n\n" + detail
}
