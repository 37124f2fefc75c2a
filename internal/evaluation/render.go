package evaluation

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// highlights is how many best and worst queries the summary lists.
const highlights = 3

// queryWidth truncates query text in the summary.
const queryWidth = 50

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(34)
	valueStyle = lipgloss.NewStyle().Bold(true)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Render writes a human-readable summary of r to w.
func Render(w io.Writer, r *Report) error {
	if r == nil || len(r.DetailedResults) == 0 {
		_, err := fmt.Fprintln(w, "No evaluation results available.")
		return err
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Retrieval evaluation summary"))
	sb.WriteString("\n")

	row := func(label, value string) {
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)))
		sb.WriteString("\n")
	}
	s := r.Summary
	row("Total queries evaluated", fmt.Sprintf("%d", s.TotalQueries))
	row("Average precision", fmt.Sprintf("%.3f", s.AveragePrecision))
	row("Average recall", fmt.Sprintf("%.3f", s.AverageRecall))
	row("Average F1", fmt.Sprintf("%.3f", s.AverageF1))
	row("Average relevance", fmt.Sprintf("%.3f", s.AverageRelevance))
	if s.ClassifierUsed {
		row("Domain classification accuracy", fmt.Sprintf("%.3f", s.DomainAccuracy))
	}

	best, worst := Extremes(r.DetailedResults, highlights)
	sb.WriteString("\n")
	sb.WriteString(goodStyle.Render("Top performing queries"))
	sb.WriteString("\n")
	listQueries(&sb, best)
	sb.WriteString("\n")
	sb.WriteString(badStyle.Render("Queries needing improvement"))
	sb.WriteString("\n")
	listQueries(&sb, worst)

	_, err := io.WriteString(w, sb.String())
	return err
}

// Extremes returns up to n results with the highest F1 and up to n with the
// lowest. Ties keep input order.
func Extremes(results []QueryResult, n int) (best, worst []QueryResult) {
	asc := slices.Clone(results)
	slices.SortStableFunc(asc, func(a, b QueryResult) int { return cmp.Compare(a.F1, b.F1) })
	desc := slices.Clone(results)
	slices.SortStableFunc(desc, func(a, b QueryResult) int { return cmp.Compare(b.F1, a.F1) })
	n = min(n, len(results))
	return desc[:n], asc[:n]
}

func listQueries(sb *strings.Builder, rs []QueryResult) {
	for i, r := range rs {
		fmt.Fprintf(sb, "%d. F1: %.3f  %s\n", i+1, r.F1, shorten(r.Query, queryWidth))
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
