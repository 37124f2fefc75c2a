package rag

import (
	"math"
	"regexp"
	"strings"
)

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Distance converts a cosine similarity into a cosine distance.
func Distance(similarity float64) float32 {
	return float32(1 - similarity)
}

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanText lowercases s, drops everything other than ASCII letters, digits
// and whitespace, and collapses runs of whitespace to a single space.
func CleanText(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
