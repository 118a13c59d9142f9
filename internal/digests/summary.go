package digests

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/JaimeStill/vigil/internal/decisions"
)

// UnknownReason labels decisions recorded without a reason.
const UnknownReason = "Unknown reason"

const topReasons = 3

const periodLayout = "2006-01-02 15:04 MST"

// ReasonCount is one row of the reason ranking.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summary aggregates the digestable decisions of one window.
type Summary struct {
	Total      int
	Suppressed int
	Reasons    []ReasonCount
}

// ForReview is the number of digested items that were not suppressed.
func (s Summary) ForReview() int {
	return s.Total - s.Suppressed
}

// Summarize counts decisions and ranks reasons by frequency, highest first.
// Equal counts order by reason so the ranking is stable.
func Summarize(list []decisions.Decision) Summary {
	s := Summary{Total: len(list)}
	counts := make(map[string]int)

	for _, d := range list {
		if d.Outcome == decisions.Suppress {
			s.Suppressed++
		}
		reason := strings.TrimSpace(d.Reason)
		if reason == "" {
			reason = UnknownReason
		}
		counts[reason]++
	}

	s.Reasons = make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		s.Reasons = append(s.Reasons, ReasonCount{Reason: reason, Count: n})
	}
	slices.SortFunc(s.Reasons, func(a, b ReasonCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})

	return s
}

// Render formats the fixed summary block. An empty window renders EmptySummary.
func Render(digestType string, start, end time.Time, s Summary) string {
	if s.Total == 0 {
		return EmptySummary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s digest for %s to %s\n",
		label(digestType),
		start.UTC().Format(periodLayout),
		end.UTC().Format(periodLayout),
	)
	fmt.Fprintf(&b, "Total traffic processed: %d\n", s.Total)
	fmt.Fprintf(&b, "Suppressed: %d\n", s.Suppressed)
	fmt.Fprintf(&b, "Items for review: %d\n", s.ForReview())
	b.WriteString("Top reasons:")

	for _, rc := range s.Reasons[:min(topReasons, len(s.Reasons))] {
		fmt.Fprintf(&b, "\n- %dx %s", rc.Count, rc.Reason)
	}

	return b.String()
}

func label(digestType string) string {
	t := strings.ReplaceAll(strings.TrimSpace(digestType), "_", " ")
	if t == "" {
		return "Digest"
	}
	r := []rune(t)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
