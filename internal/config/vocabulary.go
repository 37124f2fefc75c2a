package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/54b3r/civic-go/internal/rag"
)

// VocabularyVersion is the only vocabulary schema version understood.
const VocabularyVersion = 1

// Route names understood by the orchestrator.
var knownRoutes = map[string]bool{"billing": true, "incident": true, "licensing": true}

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary holds every keyword table used by classification and routing.
// It is loaded once at startup and shared read-only.
type Vocabulary struct {
	Version int `yaml:"version"`

	// Domains are scored in order; ties go to the earlier entry.
	Domains []KeywordSet `yaml:"domains"`

	// Documents maps normalised document identifiers to domain names.
	Documents map[string]string `yaml:"documents"`

	// Routes are checked in order by the orchestrator.
	Routes []KeywordSet `yaml:"routes"`

	// Intents refine the response for unrouted queries.
	Intents []KeywordSet `yaml:"intents"`

	// Web lists the council website pages to cache.
	Web WebVocabulary `yaml:"web"`
}

// KeywordSet is a named, ordered keyword list.
type KeywordSet struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// WebVocabulary describes the pages fetched by the web cache.
type WebVocabulary struct {
	BaseURL string      `yaml:"base_url"`
	Targets []WebTarget `yaml:"targets"`
}

// WebTarget is a single page relative to the base URL.
type WebTarget struct {
	Path     string `yaml:"path"`
	Category string `yaml:"category"`
	Title    string `yaml:"title"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

// LoadVocabulary reads the vocabulary at path, or the embedded default when
// path is empty.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read vocabulary %s: %w", path, err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("config: vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary decodes, normalises and validates a vocabulary document.
// Keywords and document identifiers are lowercased.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("config: parse vocabulary: %w", err)
	}
	v.normalise()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) normalise() {
	for _, sets := range [][]KeywordSet{v.Domains, v.Routes, v.Intents} {
		for i := range sets {
			for j, kw := range sets[i].Keywords {
				sets[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
			}
		}
	}
	if len(v.Documents) > 0 {
		docs := make(map[string]string, len(v.Documents))
		for k, d := range v.Documents {
			docs[strings.ToLower(strings.TrimSpace(k))] = d
		}
		v.Documents = docs
	}
}

// Validate reports every structural problem in v.
func (v *Vocabulary) Validate() error {
	var errs []error
	if v.Version != VocabularyVersion {
		errs = append(errs, fmt.Errorf("unsupported version %d (want %d)", v.Version, VocabularyVersion))
	}
	if len(v.Domains) == 0 {
		errs = append(errs, errors.New("no domains defined"))
	}
	seen := make(map[string]bool)
	for _, d := range v.Domains {
		if _, err := rag.ParseDomain(d.Name); err != nil {
			errs = append(errs, err)
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("domain %q defined twice", d.Name))
		}
		seen[d.Name] = true
		errs = append(errs, checkKeywords("domain", d)...)
	}
	for id, d := range v.Documents {
		if _, err := rag.ParseDomain(d); err != nil {
			errs = append(errs, fmt.Errorf("document %q: %w", id, err))
		}
	}
	for _, r := range v.Routes {
		if !knownRoutes[r.Name] {
			errs = append(errs, fmt.Errorf("unknown route %q", r.Name))
		}
		errs = append(errs, checkKeywords("route", r)...)
	}
	for _, in := range v.Intents {
		errs = append(errs, checkKeywords("intent", in)...)
	}
	if v.Web.BaseURL != "" {
		if u, err := url.Parse(v.Web.BaseURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("web base_url %q is not an absolute URL", v.Web.BaseURL))
		}
	}
	for _, t := range v.Web.Targets {
		if t.Category == "" || t.Title == "" {
			errs = append(errs, fmt.Errorf("web target %q needs category and title", t.Path))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid vocabulary: %w", errors.Join(errs...))
	}
	return nil
}

func checkKeywords(kind string, s KeywordSet) []error {
	if len(s.Keywords) == 0 {
		return []error{fmt.Errorf("%s %q has no keywords", kind, s.Name)}
	}
	for _, kw := range s.Keywords {
		if kw == "" {
			return []error{fmt.Errorf("%s %q has an empty keyword", kind, s.Name)}
		}
	}
	return nil
}
