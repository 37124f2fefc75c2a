package webcache

import (
	"strings"
	"unicode"

	"github.com/54b3r/civic-go/internal/rag"
)

// snippetRadius is the number of characters kept either side of a match.
const snippetRadius = 100

// Snippet is a web document matching a substring search.
type Snippet struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchContent returns, in document order, every document whose content
// contains query case-insensitively, with the text around the first match
// wrapped in "...".
func SearchContent(query string, docs []rag.Document) []Snippet {
	q := []rune(strings.ToLower(strings.TrimSpace(query)))
	if len(q) == 0 {
		return nil
	}
	var out []Snippet
	for _, d := range docs {
		content := []rune(d.Content)
		at := indexFold(content, q)
		if at < 0 {
			continue
		}
		start := max(0, at-snippetRadius)
		end := min(len(content), at+len(q)+snippetRadius)
		out = append(out, Snippet{
			URL:     d.Metadata.Extra["url"],
			Title:   d.Metadata.Title,
			Snippet: "..." + string(content[start:end]) + "...",
		})
	}
	return out
}

// indexFold finds the rune offset of lowered needle in haystack, comparing
// haystack runes lowercased.
func indexFold(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
