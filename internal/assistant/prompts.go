package assistant

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/allaspectsdev/legalsmart/internal/store"
)

// clientTable renders clients as an aligned plain-text table.
func clientTable(clients []store.Client) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tname\tage\tlegal_issue")
	for _, c := range clients {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.Age, c.LegalIssue)
	}
	tw.Flush()
	return b.String()
}

func ageStatsBlock(a AgeStats) string {
	return fmt.Sprintf("count %d\nmean %.2f\nstd %.2f\nmin %d\n25%% %.2f\n50%% %.2f\n75%% %.2f\nmax %d",
		a.Count, a.Mean, a.Std, a.Min, a.Q1, a.Median, a.Q3, a.Max)
}

func issueBlock(issues []IssueCount) string {
	parts := make([]string, 0, len(issues))
	for _, ic := range issues {
		parts = append(parts, fmt.Sprintf("%s: %d", ic.Issue, ic.Count))
	}
	return strings.Join(parts, ", ")
}

// AnalysisPrompt builds the full-table analysis request.
func AnalysisPrompt(clients []store.Client, language string) string {
	s := Summarize(clients)
	return fmt.Sprintf(`You are a legal analytics expert analyzing client data for a law firm.
Please provide a comprehensive analysis in %s.

Dataset Overview:
- Total clients: %d
- Columns: id, name, age, legal_issue

Client Data (Full Table):
%s
Age Statistics:
%s

Legal Issue Distribution:
%s

Please provide a detailed analysis including:

1. **Descriptive statistics**
   - Detailed age distribution
   - Mean, median and standard deviation
   - Outliers, if any

2. **Legal area analysis**
   - The most common area and why it matters
   - Areas that need special attention
   - Recommendations for improving service in each area

3. **Cross analysis**
   - Relationships between age and legal area
   - Notable patterns

4. **Business insights**
   - Opportunities for growth
   - Marketing and staffing recommendations

Format the answer with clear headings and bullet points.`,
		language, s.TotalClients, clientTable(clients), ageStatsBlock(s.Ages), issueBlock(s.Issues))
}

// QuestionPrompt builds the free-text Q&A request over the client table.
func QuestionPrompt(question string, clients []store.Client, language string) string {
	s := Summarize(clients)

	issues := make([]string, 0, len(s.Issues))
	for _, ic := range s.Issues {
		issues = append(issues, ic.Issue)
	}
	ageRange := "n/a"
	if s.TotalClients > 0 {
		ageRange = fmt.Sprintf("%d-%d", s.Ages.Min, s.Ages.Max)
	}

	return fmt.Sprintf(`You are an intelligent legal assistant with access to a law firm's client database.
Answer questions in %s based ONLY on the available data. Be precise and helpful.

Database Summary:
- Total Clients: %d
- Age Range: %s
- Legal Areas: %s

Full Client Database:
%s
Detailed Statistics:
- Age distribution:
%s
- Legal issues frequency: %s

User Question: %s

Instructions:
1. Answer specifically based on the data
2. Include relevant statistics and percentages
3. If the question requires calculations, show them
4. If the question is unrelated to the data, politely redirect
5. Use clear %s with professional legal terminology where appropriate
6. Format numbers nicely (e.g., 45.5%% not 0.455)
7. If relevant, suggest follow-up questions the user might find interesting`,
		language, s.TotalClients, ageRange, strings.Join(issues, ", "),
		clientTable(clients), ageStatsBlock(s.Ages), issueBlock(s.Issues),
		strings.TrimSpace(question), language)
}
