package serp

import (
	"net/url"
	"strings"
	"time"

	"github.com/seo-forecaster/backend/analyzer"
)

// OrganicResult is one organic listing as returned by the provider.
type OrganicResult struct {
	Position      int    `json:"position"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	DisplayedLink string `json:"displayed_link,omitempty"`
	RichFeatures  int    `json:"rich_features"`
}

// PAAItem is one "People Also Ask" entry.
type PAAItem struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet,omitempty"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link,omitempty"`
	Source   string `json:"source,omitempty"`
}

// FeaturedSnippet is the answer box shown above organic results.
type FeaturedSnippet struct {
	Type    string     `json:"type"`
	Title   string     `json:"title,omitempty"`
	Snippet string     `json:"snippet,omitempty"`
	Link    string     `json:"link,omitempty"`
	List    []string   `json:"list,omitempty"`
	Table   [][]string `json:"table,omitempty"`
}

// Shape classifies the snippet as paragraph, list or table.
func (f *FeaturedSnippet) Shape() string {
	switch {
	case f == nil:
		return ""
	case len(f.Table) > 0 || strings.Contains(strings.ToLower(f.Type), "table"):
		return "table"
	case len(f.List) > 0 || strings.Contains(strings.ToLower(f.Type), "list"):
		return "list"
	default:
		return "paragraph"
	}
}

// KnowledgePanel is the knowledge graph card.
type KnowledgePanel struct {
	Title               string   `json:"title"`
	Type                string   `json:"type,omitempty"`
	Description         string   `json:"description,omitempty"`
	Source              string   `json:"source,omitempty"`
	PeopleAlsoSearchFor []string `json:"people_also_search_for,omitempty"`
	Questions           []string `json:"questions,omitempty"`
}

// Place is a local pack listing.
type Place struct {
	Title   string  `json:"title"`
	Rating  float64 `json:"rating,omitempty"`
	Reviews int     `json:"reviews,omitempty"`
	Type    string  `json:"type,omitempty"`
}

// MediaItem is a video, image, news or shopping listing.
type MediaItem struct {
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
	Source string `json:"source,omitempty"`
	Extra  string `json:"extra,omitempty"` // duration, date or price
}

// Feature names reported in Features.Present.
const (
	FeaturePAA             = "people_also_ask"
	FeatureRelatedSearches = "related_searches"
	FeatureSnippet         = "featured_snippet"
	FeatureKnowledgePanel  = "knowledge_panel"
	FeatureAds             = "ads"
	FeatureLocalPack       = "local_pack"
	FeatureVideo           = "video_results"
	FeatureImages          = "image_results"
	FeatureNews            = "news_results"
	FeatureShopping        = "shopping_results"
)

// Features holds the non-organic SERP elements.
type Features struct {
	PeopleAlsoAsk   []PAAItem        `json:"people_also_ask,omitempty"`
	RelatedSearches []string         `json:"related_searches,omitempty"`
	FeaturedSnippet *FeaturedSnippet `json:"featured_snippet,omitempty"`
	KnowledgePanel  *KnowledgePanel  `json:"knowledge_panel,omitempty"`
	AdsPresent      bool             `json:"ads_present"`
	LocalPack       []Place          `json:"local_pack,omitempty"`
	Videos          []MediaItem      `json:"videos,omitempty"`
	Images          []MediaItem      `json:"images,omitempty"`
	News            []MediaItem      `json:"news,omitempty"`
	Shopping        []MediaItem      `json:"shopping,omitempty"`
	Present         []string         `json:"present,omitempty"`
}

// Has reports whether feature name was present on the SERP.
func (f Features) Has(name string) bool {
	for _, p := range f.Present {
		if p == name {
			return true
		}
	}
	return false
}

// Authority holds backlink metrics for a domain. Known is false when the
// authority provider could not supply them.
type Authority struct {
	DT         float64 `json:"dt"`
	RefDomains float64 `json:"referring_domains"`
	Known      bool    `json:"known"`
}

// Competitor is one enriched organic result.
type Competitor struct {
	OrganicResult
	Domain        string                 `json:"domain"`
	Authority     Authority              `json:"authority"`
	Page          *analyzer.PageAnalysis `json:"page"`
	SemanticScore float64                `json:"semantic_score"`
	Giant         bool                   `json:"giant"`
}

// Valid reports whether the competitor page yielded real content features.
func (c Competitor) Valid() bool {
	return c.Page.Valid()
}

// Medians are aggregate statistics over valid competitors.
type Medians struct {
	DT                  float64 `json:"dt"`
	RefDomains          float64 `json:"referring_domains"`
	WordCount           float64 `json:"word_count"`
	SentenceCount       float64 `json:"sentence_count"`
	AvgWordsPerSentence float64 `json:"average_words_per_sentence"`
	Flesch              float64 `json:"flesch_reading_ease_score"`
	SchemaTotal         float64 `json:"total_schema_types"`
	SchemaUnique        float64 `json:"unique_schema_types"`
	InternalLinks       float64 `json:"internal_links"`
	RichFeatures        float64 `json:"rich_result_features"`
	Semantic            float64 `json:"semantic_topic_score"`

	ValidEntries int `json:"valid_entries"`
	// Defaulted lists metric groups that fell back to neutral defaults.
	Defaulted []string `json:"defaulted,omitempty"`
	// Guarded lists metrics replaced by sanity guards.
	Guarded []string `json:"guarded,omitempty"`
}

// EnrichedSerp is the cached enrichment for one (keyword, domain) pair.
type EnrichedSerp struct {
	Keyword      string       `json:"keyword"`
	Domain       string       `json:"domain"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Competitors  []Competitor `json:"competitors"`
	Features     Features     `json:"features"`
	Target       Authority    `json:"target"`
	Medians      Medians      `json:"medians"`
	GiantBrands  int          `json:"giant_brands"`
	ProviderNote string       `json:"provider_note,omitempty"`
}

// Empty reports whether the provider returned no organic results.
func (e *EnrichedSerp) Empty() bool {
	return e == nil || len(e.Competitors) == 0
}

// ValidCompetitors returns competitors with usable page features, in rank order.
func (e *EnrichedSerp) ValidCompetitors() []Competitor {
	var out []Competitor
	for _, c := range e.Competitors {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// ExtractDomain returns the bare host of rawURL without a www. prefix.
// Bare domains without a scheme are accepted.
func ExtractDomain(rawURL string) string {
	s := strings.TrimSpace(strings.ToLower(rawURL))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
