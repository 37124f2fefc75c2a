package rag

import "fmt"

// Domain is a topical category used for routing and filtering retrieval.
type Domain string

const (
	DomainByLaws      Domain = "by-laws"
	DomainLicensing   Domain = "licensing"
	DomainBilling     Domain = "billing"
	DomainNotices     Domain = "notices"
	DomainContacts    Domain = "contacts"
	DomainDepartments Domain = "departments"
	DomainFAQ         Domain = "faq"
	DomainGlossary    Domain = "glossary"
	DomainServices    Domain = "services"
	DomainUtilities   Domain = "utilities"
	DomainGeneral     Domain = "general"
	DomainStructured  Domain = "structured"
)

// allDomains is the enumeration in declaration order. Tie-breaking in the
// classifier follows vocabulary order, which defaults to this order.
var allDomains = []Domain{
	DomainByLaws,
	DomainLicensing,
	DomainBilling,
	DomainNotices,
	DomainContacts,
	DomainDepartments,
	DomainFAQ,
	DomainGlossary,
	DomainServices,
	DomainUtilities,
	DomainGeneral,
	DomainStructured,
}

// Domains returns every known domain in declaration order.
func Domains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// ParseDomain validates s against the known domains.
func ParseDomain(s string) (Domain, error) {
	for _, d := range allDomains {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("rag: unknown domain %q", s)
}

// Filters reports whether d restricts a search. The general domain and the
// empty domain never filter.
func (d Domain) Filters() bool {
	return d != "" && d != DomainGeneral
}

// DataType identifies where a piece of content came from.
type DataType string

const (
	DataTypeText       DataType = "text"
	DataTypeStructured DataType = "structured"
	DataTypeWeb        DataType = "web"
)

// Metadata is the typed metadata attached to every document and chunk.
// Fields the pipeline reads are explicit; everything else goes in Extra.
type Metadata struct {
	// Title is the document title. Chunk ids are derived from it.
	Title string `json:"title"`

	// Domain is the classified topical domain.
	Domain Domain `json:"domain"`

	// Source is the origin of the content (file name, table name, host).
	Source string `json:"source,omitempty"`

	// DataType is the content kind: text, structured, or web.
	DataType DataType `json:"data_type,omitempty"`

	// ChunkID is the chunk's position within its document, starting at 0.
	ChunkID int `json:"chunk_id"`

	// Extra holds free-form attributes (url, category, record_id, ...).
	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Document is an input unit of content before chunking.
type Document struct {
	// Content is the raw text.
	Content string `json:"content"`

	// Metadata describes the document.
	Metadata Metadata `json:"metadata"`
}

// Chunk is a piece of a document as stored in the index.
type Chunk struct {
	// ID is "{title}_{index}" and is unique within the index.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Metadata is inherited from the parent document with ChunkID set.
	Metadata Metadata `json:"metadata"`
}

// SearchResult is a chunk returned from a similarity search.
type SearchResult struct {
	// ID is the chunk id.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Metadata is the chunk metadata.
	Metadata Metadata `json:"metadata"`

	// Distance is the cosine distance to the query (lower is closer).
	Distance float32 `json:"distance"`
}
