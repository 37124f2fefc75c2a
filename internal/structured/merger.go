// Package structured loads tabular sources (JSON files and SQLite tables)
// and exposes their records both as indexable documents and through a
// direct substring search.
package structured

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/54b3r/civic-go/internal/rag"
)

// DocumentClassifier assigns a domain to a source name.
// *classifier.Classifier satisfies it.
type DocumentClassifier interface {
	ClassifyDocument(identifier string) rag.Domain
}

// Match is one record returned by Search.
type Match struct {
	Record Record     `json:"record"`
	Source string     `json:"source"`
	Domain rag.Domain `json:"domain"`
}

// source is one loaded source with the domain assigned to it.
type source struct {
	name    string
	domain  rag.Domain
	records []Record
}

// Merger holds the loaded structured sources. It is safe for concurrent use.
type Merger struct {
	mu         sync.RWMutex
	sources    []*source
	byName     map[string]*source
	classifier DocumentClassifier
	log        *slog.Logger
}

// New returns an empty Merger. cls may be nil, in which case every source
// is assigned the structured domain.
func New(cls DocumentClassifier, log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{
		byName:     make(map[string]*source),
		classifier: cls,
		log:        log.With(slog.String("component", "structured")),
	}
}

// Load reads every path. A directory contributes each supported file
// directly inside it. JSON files become one source named after the file;
// each table of an SQLite database becomes one source named after the
// table. Reloading a source name replaces it. A file that fails to parse
// is logged and skipped; only an unreadable path is an error.
func (m *Merger) Load(ctx context.Context, paths ...string) (map[string][]Record, error) {
	loaded := make(map[string][]Record)
	for _, p := range paths {
		files, err := expand(p)
		if err != nil {
			return nil, fmt.Errorf("structured: load: %w", err)
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var sets map[string][]Record
			switch strings.ToLower(filepath.Ext(f)) {
			case ".json":
				sets, err = loadJSON(f)
			case ".db", ".sqlite", ".sqlite3":
				sets, err = loadSQLite(ctx, f)
			default:
				continue
			}
			if err != nil {
				m.log.Warn("structured: skipping source", slog.String("path", f), slog.String("error", err.Error()))
				continue
			}
			for name, recs := range sets {
				loaded[name] = recs
			}
		}
	}

	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)

	m.mu.Lock()
	for _, name := range names {
		m.put(name, loaded[name])
	}
	m.mu.Unlock()

	m.log.Info("structured: sources loaded", slog.Int("sources", len(loaded)))
	return loaded, nil
}

// Add registers records under name directly, replacing any previous
// source of that name.
func (m *Merger) Add(name string, records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(name, records)
}

func (m *Merger) put(name string, records []Record) {
	domain := rag.DomainStructured
	if m.classifier != nil {
		domain = m.classifier.ClassifyDocument(name)
	}
	if existing, ok := m.byName[name]; ok {
		existing.records = records
		existing.domain = domain
		return
	}
	s := &source{name: name, domain: domain, records: records}
	m.sources = append(m.sources, s)
	m.byName[name] = s
}

// Sources returns the loaded source names in load order.
func (m *Merger) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.sources))
	for i, s := range m.sources {
		out[i] = s.name
	}
	return out
}

// ToDocuments renders one document per record. Content is the record's
// "key: value" lines; metadata carries the source, its domain, and a
// record_id of "{source}_{i}" in Extra. Empty records are skipped.
func (m *Merger) ToDocuments() []rag.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []rag.Document
	for _, s := range m.sources {
		for i, rec := range s.records {
			if len(rec) == 0 {
				continue
			}
			id := fmt.Sprintf("%s_%d", s.name, i)
			docs = append(docs, rag.Document{
				Content: rec.Text(),
				Metadata: rag.Metadata{
					Title:    id,
					Domain:   s.domain,
					Source:   s.name,
					DataType: rag.DataTypeStructured,
					Extra:    map[string]string{"record_id": id},
				},
			})
		}
	}
	return docs
}

// Search returns every record whose space-joined values contain query,
// case-insensitively, in source then record order. A domain that filters
// restricts the search to sources of that domain. An empty query matches
// nothing.
func (m *Merger) Search(query string, domain rag.Domain) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Match
	for _, s := range m.sources {
		if domain.Filters() && s.domain != domain {
			continue
		}
		for _, rec := range s.records {
			if strings.Contains(strings.ToLower(rec.values()), q) {
				out = append(out, Match{Record: rec, Source: s.name, Domain: s.domain})
			}
		}
	}
	return out
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func loadJSON(path string) (map[string][]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return map[string][]Record{filepath.Base(path): recs}, nil
}

func loadSQLite(ctx context.Context, path string) (map[string][]Record, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]Record, len(tables))
	for _, t := range tables {
		recs, err := readTable(ctx, db, t)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t, err)
		}
		out[t] = recs
	}
	return out, nil
}

func readTable(ctx context.Context, db *sql.DB, table string) ([]Record, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+strings.ReplaceAll(table, `"`, `""`)+`"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var recs []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, 0, len(cols))
		for i, c := range cols {
			if s, ok := renderColumn(vals[i]); ok {
				rec = append(rec, Field{Key: c, Value: s})
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
