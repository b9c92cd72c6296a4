package brief

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/seo-forecaster/backend/intent"
)

// Brief modes.
const (
	ModeNew      = "new"
	ModeExisting = "existing"
)

// Target selects what the brief is written for: a new page or an
// existing one.
type Target interface {
	Mode() string
}

// NewPage requests a brief for content that does not exist yet.
type NewPage struct{}

// Mode implements Target.
func (NewPage) Mode() string { return ModeNew }

// ExistingPage requests a brief that also diffs the page at URL.
type ExistingPage struct {
	URL string
}

// Mode implements Target.
func (ExistingPage) Mode() string { return ModeExisting }

// SectionKind places a section in the outline.
type SectionKind string

const (
	KindIntro SectionKind = "intro"
	KindBody  SectionKind = "body"
	KindFAQ   SectionKind = "faq"
)

// Section is one proposed part of the outline.
type Section struct {
	Heading     string      `json:"heading"`
	Kind        SectionKind `json:"kind"`
	Description string      `json:"description,omitempty"`
	TargetWords int         `json:"target_word_count"`
	Subheadings []string    `json:"subheadings,omitempty"`
	KeyPoints   []string    `json:"key_points,omitempty"`
	TopicTags   []string    `json:"topic_tags,omitempty"`

	// weight is the number of competitors covering the section.
	weight int
}

// Range is a min/target/max band.
type Range struct {
	Min    int `json:"min"`
	Target int `json:"target"`
	Max    int `json:"max"`
}

// Strategy holds the intent-driven structural defaults.
type Strategy struct {
	ContentFormat string   `json:"content_format"`
	WordCount     Range    `json:"word_count"`
	Readability   Range    `json:"readability"`
	SchemaTypes   []string `json:"schema_types"`
}

// Topics lists what the content must mention.
type Topics struct {
	MustCover []string `json:"must_cover,omitempty"`
	Related   []string `json:"related,omitempty"`
	Entities  []string `json:"entities,omitempty"`
}

// Opportunities are SERP-feature specific recommendations.
type Opportunities struct {
	FeaturedSnippet string   `json:"featured_snippet_strategy"`
	FAQSchema       []string `json:"faq_schema_questions,omitempty"`
	Other           []string `json:"other,omitempty"`
}

// Question priorities.
const (
	QuestionHigh   = "high"
	QuestionMedium = "medium"
)

// Question is a searcher question the content should answer.
type Question struct {
	Question  string `json:"question"`
	Priority  string `json:"priority"`
	Format    string `json:"answer_format"`
	Placement string `json:"placement"`
}

// Mode is the mode-specific part of a brief: NewContent or *ExistingContent.
type Mode interface {
	Kind() string
}

// NewContent marks a brief for a page that does not exist yet.
type NewContent struct{}

// Kind implements Mode.
func (NewContent) Kind() string { return ModeNew }

// ContentBrief is a synthesized writing brief.
type ContentBrief struct {
	ID              string        `json:"id"`
	KeywordID       uint          `json:"keyword_id,omitempty"`
	Keyword         string        `json:"keyword"`
	Language        string        `json:"language,omitempty"`
	Intent          intent.Result `json:"intent"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	Strategy        Strategy      `json:"strategy"`
	Sections        []Section     `json:"sections"`
	Topics          Topics        `json:"topics"`
	Opportunities   Opportunities `json:"serp_opportunities"`
	Questions       []Question    `json:"questions_to_answer,omitempty"`
	UniqueAngles    []string      `json:"unique_angles,omitempty"`
	SerpFeatures    []string      `json:"serp_features,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`

	Mode Mode `json:"-"`
}

// Existing returns the existing-page analysis, if the brief has one.
func (b *ContentBrief) Existing() (*ExistingContent, bool) {
	e, ok := b.Mode.(*ExistingContent)
	return e, ok && e != nil
}

// ModeName returns "new" or "existing".
func (b *ContentBrief) ModeName() string {
	if b.Mode == nil {
		return ModeNew
	}
	return b.Mode.Kind()
}

type briefFields ContentBrief

// MarshalJSON flattens the mode into a "mode" tag plus an optional
// "existing" object.
func (b ContentBrief) MarshalJSON() ([]byte, error) {
	out := struct {
		briefFields
		Kind     string           `json:"mode"`
		Existing *ExistingContent `json:"existing,omitempty"`
	}{briefFields: briefFields(b), Kind: b.ModeName()}
	if e, ok := b.Existing(); ok {
		out.Existing = e
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the mode written by MarshalJSON.
func (b *ContentBrief) UnmarshalJSON(data []byte) error {
	var in struct {
		briefFields
		Kind     string           `json:"mode"`
		Existing *ExistingContent `json:"existing"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*b = ContentBrief(in.briefFields)
	switch in.Kind {
	case ModeNew, "":
		b.Mode = NewContent{}
	case ModeExisting:
		if in.Existing == nil {
			return fmt.Errorf("existing brief without existing analysis")
		}
		b.Mode = in.Existing
	default:
		return fmt.Errorf("unknown brief mode %q", in.Kind)
	}
	return nil
}
