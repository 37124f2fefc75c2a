package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/54b3r/civic-go/internal/retrieval"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders a retrieval result for the terminal.
func printResult(w io.Writer, res *retrieval.Result) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", headingStyle.Render("Domain:"), tagStyle.Render(string(res.Domain)))
	if res.FilterBypassed {
		sb.WriteString(mutedStyle.Render("  (no matches in domain, showing all domains)"))
	}
	sb.WriteString("\n")

	if res.Empty() {
		sb.WriteString("No matching information found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	for i, c := range res.Chunks {
		fmt.Fprintf(&sb, "\n%s %s %s\n%s\n",
			headingStyle.Render(fmt.Sprintf("%d.", i+1)),
			c.Metadata.Title,
			mutedStyle.Render(fmt.Sprintf("[%s, distance %.3f]", c.Metadata.Domain, c.Distance)),
			strings.TrimSpace(c.Content),
		)
	}
	if len(res.Records) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", headingStyle.Render("Records"))
		for _, m := range res.Records {
			fmt.Fprintf(&sb, "- %s %s\n", mutedStyle.Render("("+m.Source+")"), strings.ReplaceAll(m.Record.Text(), "\n", "; "))
		}
	}
	if len(res.Web) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", headingStyle.Render("Council website"))
		for _, s := range res.Web {
			fmt.Fprintf(&sb, "- %s %s\n  %s\n", s.Title, mutedStyle.Render(s.URL), s.Snippet)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
