package analyzer

import (
	"time"

	"github.com/seo-forecaster/backend/textfeatures"
)

// Heading is one h1-h3 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Section is an H2 together with the H3s that follow it.
type Section struct {
	Heading     string   `json:"heading"`
	Subheadings []string `json:"subheadings,omitempty"`
}

// PageAnalysis is everything extracted from one fetched page.
// When the fetch or parse fails, Err is set and every numeric field is zero.
type PageAnalysis struct {
	URL             string                `json:"url"`
	Title           string                `json:"title"`
	H1              string                `json:"h1"`
	MetaDescription string                `json:"meta_description"`
	Language        string                `json:"language,omitempty"`
	Headings        []Heading             `json:"headings,omitempty"`
	Outline         []Section             `json:"outline,omitempty"`
	FirstParagraph  string                `json:"first_paragraph,omitempty"`
	Paragraphs      []string              `json:"paragraphs,omitempty"`
	Features        textfeatures.Features `json:"features"`
	InternalLinks   int                   `json:"internal_links"`
	ExternalLinks   int                   `json:"external_links"`
	SchemaTypes     []string              `json:"schema_types,omitempty"`
	SchemaTotal     int                   `json:"schema_total"`
	SchemaUnique    int                   `json:"schema_unique"`
	FetchedAt       time.Time             `json:"fetched_at"`
	Err             string                `json:"error,omitempty"`

	// MainText is the isolated article text. It is not persisted.
	MainText string `json:"-"`
}

// Valid reports whether the page produced usable features.
func (p *PageAnalysis) Valid() bool {
	return p != nil && p.Err == "" && p.Features.Valid()
}

// H2s returns the H2 headings in order.
func (p *PageAnalysis) H2s() []string {
	out := make([]string, 0, len(p.Outline))
	for _, s := range p.Outline {
		out = append(out, s.Heading)
	}
	return out
}

func failedPage(url string, err error) *PageAnalysis {
	return &PageAnalysis{URL: url, Err: err.Error(), FetchedAt: time.Now()}
}
