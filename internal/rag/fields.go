package rag

import (
	"strconv"
	"strings"
)

// Flat metadata keys used by stores that persist metadata as a string map.
const (
	FieldTitle    = "title"
	FieldDomain   = "domain"
	FieldSource   = "source"
	FieldDataType = "data_type"
	FieldChunkID  = "chunk_id"

	extraPrefix = "extra."
)

// Fields flattens m into a string map. Extra keys are prefixed with "extra.".
func (m Metadata) Fields() map[string]string {
	out := map[string]string{
		FieldTitle:    m.Title,
		FieldDomain:   string(m.Domain),
		FieldSource:   m.Source,
		FieldDataType: string(m.DataType),
		FieldChunkID:  strconv.Itoa(m.ChunkID),
	}
	for k, v := range m.Extra {
		out[extraPrefix+k] = v
	}
	return out
}

// MetadataFromFields is the inverse of Metadata.Fields. Unknown keys without
// the extra prefix are kept in Extra as-is.
func MetadataFromFields(fields map[string]string) Metadata {
	var m Metadata
	for k, v := range fields {
		switch k {
		case FieldTitle:
			m.Title = v
		case FieldDomain:
			m.Domain = Domain(v)
		case FieldSource:
			m.Source = v
		case FieldDataType:
			m.DataType = DataType(v)
		case FieldChunkID:
			m.ChunkID, _ = strconv.Atoi(v)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[strings.TrimPrefix(k, extraPrefix)] = v
		}
	}
	return m
}
