package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	v, err := DefaultVocabulary()
	require.NoError(t, err)

	require.Len(t, v.Domains, 11)
	assert.Equal(t, "by-laws", v.Domains[0].Name)
	assert.Equal(t, "general", v.Domains[10].Name)
	assert.Equal(t, "public notice", v.Domains[3].Keywords[2])

	assert.Equal(t, "billing", v.Documents["bill_payments"])
	assert.Equal(t, "general", v.Documents["about_me"])

	require.Len(t, v.Routes, 3)
	assert.Equal(t, []string{"billing", "incident", "licensing"},
		[]string{v.Routes[0].Name, v.Routes[1].Name, v.Routes[2].Name})

	require.Len(t, v.Web.Targets, 7)
	assert.Equal(t, "https://masvingocity.org.zw/", v.Web.BaseURL)
	assert.Equal(t, "Contact Information", v.Web.Targets[6].Title)
}

func TestParseVocabulary_NormalisesCase(t *testing.T) {
	v, err := ParseVocabulary([]byte(`
version: 1
domains:
  - name: billing
    keywords: [" Bill ", PAYMENT]
documents:
  Bill_Payments: billing
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"bill", "payment"}, v.Domains[0].Keywords)
	assert.Equal(t, "billing", v.Documents["bill_payments"])
}

func TestParseVocabulary_Invalid(t *testing.T) {
	tests := map[string]string{
		"wrong version":  "version: 2\ndomains: [{name: billing, keywords: [bill]}]",
		"unknown domain": "version: 1\ndomains: [{name: weather, keywords: [rain]}]",
		"no keywords":    "version: 1\ndomains: [{name: billing, keywords: []}]",
		"duplicate":      "version: 1\ndomains: [{name: faq, keywords: [faq]}, {name: faq, keywords: [q]}]",
		"bad route":      "version: 1\ndomains: [{name: faq, keywords: [faq]}]\nroutes: [{name: weather, keywords: [rain]}]",
		"bad document":   "version: 1\ndomains: [{name: faq, keywords: [faq]}]\ndocuments: {x: nowhere}",
		"relative url":   "version: 1\ndomains: [{name: faq, keywords: [faq]}]\nweb: {base_url: /relative}",
		"not yaml":       "{{",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVocabulary([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadVocabulary_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\ndomains: [{name: faq, keywords: [faq]}]\n"), 0o644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Len(t, v.Domains, 1)

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
