package assistant

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/allaspectsdev/legalsmart/internal/store"
)

// IssueCount is the share of clients in one legal area.
type IssueCount struct {
	Issue   string  `json:"issue"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// AgeStats describes the age column.
type AgeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    int     `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    int     `json:"max"`
}

// Summary is the locally computed overview of the client table. It is a
// pure function of the client records.
type Summary struct {
	TotalClients    int          `json:"total_clients"`
	Ages            AgeStats     `json:"ages"`
	MostCommonIssue string       `json:"most_common_issue,omitempty"`
	Issues          []IssueCount `json:"issues"`
}

// Summarize computes the Summary of clients. Legal areas are ordered by
// count descending, ties alphabetically, so the most common area is
// well defined.
func Summarize(clients []store.Client) Summary {
	s := Summary{TotalClients: len(clients), Issues: []IssueCount{}}
	if len(clients) == 0 {
		return s
	}

	ages := make([]int, len(clients))
	counts := make(map[string]int)
	for i, c := range clients {
		ages[i] = c.Age
		counts[c.LegalIssue]++
	}
	s.Ages = describeAges(ages)

	for issue, n := range counts {
		s.Issues = append(s.Issues, IssueCount{
			Issue:   issue,
			Count:   n,
			Percent: float64(n) * 100 / float64(len(clients)),
		})
	}
	sort.Slice(s.Issues, func(i, j int) bool {
		if s.Issues[i].Count != s.Issues[j].Count {
			return s.Issues[i].Count > s.Issues[j].Count
		}
		return s.Issues[i].Issue < s.Issues[j].Issue
	})
	s.MostCommonIssue = s.Issues[0].Issue
	return s
}

// Text renders the summary as Markdown.
func (s Summary) Text() string {
	if s.TotalClients == 0 {
		return "No client records are available for analysis."
	}

	var b strings.Builder
	b.WriteString("**Basic client data analysis**\n\n")
	b.WriteString("**General statistics:**\n")
	fmt.Fprintf(&b, "- Total clients: %d\n", s.TotalClients)
	fmt.Fprintf(&b, "- Average age: %.1f\n", s.Ages.Mean)
	fmt.Fprintf(&b, "- Most common legal area: %s\n", s.MostCommonIssue)

	b.WriteString("\n**Legal area distribution:**\n")
	for _, ic := range s.Issues {
		fmt.Fprintf(&b, "- %s: %d clients (%.1f%%)\n", ic.Issue, ic.Count, ic.Percent)
	}

	b.WriteString("\n**Age range:**\n")
	fmt.Fprintf(&b, "- Youngest: %d\n", s.Ages.Min)
	fmt.Fprintf(&b, "- Oldest: %d\n", s.Ages.Max)
	fmt.Fprintf(&b, "- Median: %s\n", formatNumber(s.Ages.Median))
	return b.String()
}

func describeAges(ages []int) AgeStats {
	sorted := make([]float64, len(ages))
	sum := 0.0
	for i, a := range ages {
		sorted[i] = float64(a)
		sum += float64(a)
	}
	sort.Float64s(sorted)

	n := float64(len(sorted))
	mean := sum / n

	var std float64
	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / (n - 1))
	}

	return AgeStats{
		Count:  len(sorted),
		Mean:   mean,
		Std:    std,
		Min:    int(sorted[0]),
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    int(sorted[len(sorted)-1]),
	}
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// formatNumber prints whole numbers without a fractional part.
func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
