package ingestion

import (
	"path/filepath"
	"strings"

	"github.com/54b3r/civic-go/internal/rag"
)

// FileKind classifies a file in the data directory by how it is ingested.
type FileKind int

const (
	// KindIgnored files are not ingested.
	KindIgnored FileKind = iota
	// KindText files are indexed as prose documents.
	KindText
	// KindStructured files are loaded through the structured merger.
	KindStructured
)

// String returns the lowercase kind name used in logs.
func (k FileKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	}
	return "ignored"
}

// KindOf inspects path's extension. Hidden files and editor swap files are
// ignored so that watch mode does not react to them.
func KindOf(path string) FileKind {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return KindIgnored
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return KindText
	case ".json", ".db", ".sqlite", ".sqlite3":
		return KindStructured
	}
	return KindIgnored
}

// TextMetadata builds the metadata of a text document. The title is the
// file name; the domain comes from the classifier, or general without one.
func TextMetadata(path string, cls DocumentClassifier) rag.Metadata {
	name := filepath.Base(path)
	domain := rag.DomainGeneral
	if cls != nil {
		domain = cls.ClassifyDocument(name)
	}
	return rag.Metadata{
		Title:    name,
		Domain:   domain,
		Source:   "static",
		DataType: rag.DataTypeText,
		Extra:    map[string]string{"filename": name},
	}
}
