package brief

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/llm"
)

const maxMetaRunes = 160

// Draft is the structural part of a brief handed to a Writer.
type Draft struct {
	Keyword   string
	Intent    intent.Result
	Language  string
	Headings  []string
	Topics    []string
	Questions []string
}

// Copy is the prose a Writer produces. Empty fields keep the defaults.
type Copy struct {
	Title               string            `json:"title"`
	MetaDescription     string            `json:"meta_description"`
	SectionDescriptions map[string]string `json:"section_descriptions"`
	UniqueAngles        []string          `json:"unique_angles"`
}

// Writer turns a draft outline into titles and descriptions.
type Writer interface {
	Write(ctx context.Context, d Draft) (Copy, error)
}

const writerSystemPrompt = "You are an SEO content strategist writing content briefs. Always return valid JSON."

// LLMWriter is a Writer backed by a language model.
type LLMWriter struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMWriter creates an LLMWriter.
func NewLLMWriter(client llm.Client, logger *zap.Logger) *LLMWriter {
	return &LLMWriter{client: client, logger: logger.Named("writer")}
}

// Write implements Writer.
func (w *LLMWriter) Write(ctx context.Context, d Draft) (Copy, error) {
	c, err := llm.CompleteJSON[Copy](ctx, w.client, writerSystemPrompt, writerPrompt(d))
	if err != nil {
		return Copy{}, fmt.Errorf("write brief copy for %q: %w", d.Keyword, err)
	}
	if strings.TrimSpace(c.Title) == "" {
		return Copy{}, errors.New("writer returned no title")
	}
	return c, nil
}

func writerPrompt(d Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %q\n", d.Keyword)
	fmt.Fprintf(&b, "Search intent: %s (format: %s)\n", d.Intent.Intent, d.Intent.ContentFormat)
	if d.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", d.Language)
	}
	b.WriteString("\nOutline:\n")
	for _, h := range d.Headings {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	if len(d.Topics) > 0 {
		fmt.Fprintf(&b, "\nTopics competitors cover: %s\n", strings.Join(d.Topics, ", "))
	}
	if len(d.Questions) > 0 {
		b.WriteString("\nQuestions searchers ask:\n")
		for _, q := range d.Questions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	b.WriteString(`
Return JSON with:
{
  "title": "SEO title, 50-60 characters, containing the keyword",
  "meta_description": "at most 160 characters, containing the keyword",
  "section_descriptions": {"<heading from the outline>": "one or two sentences on what the section must cover"},
  "unique_angles": ["ways to stand out from the current results"]
}`)
	return b.String()
}

var formatSuffixes = map[string]string{
	intent.FormatArticle:    "The Complete Guide",
	intent.FormatHowTo:      "A Step-by-Step Guide",
	intent.FormatProduct:    "Reviews and Buying Guide",
	intent.FormatFAQ:        "Your Questions Answered",
	intent.FormatList:       "Top Picks Compared",
	intent.FormatComparison: "Side-by-Side Comparison",
	intent.FormatDefinition: "Definition and Examples",
	intent.FormatNews:       "Latest Updates",
}

func defaultTitle(keyword, format string) string {
	suffix, ok := formatSuffixes[format]
	if !ok {
		suffix = formatSuffixes[intent.FormatArticle]
	}
	return titleCase(keyword) + ": " + suffix
}

func defaultMeta(keyword string, i intent.Intent, topics []string) string {
	var lead string
	switch i {
	case intent.Commercial:
		lead = fmt.Sprintf("Compare the best options for %s", keyword)
	case intent.Transactional:
		lead = fmt.Sprintf("Get %s with clear pricing and next steps", keyword)
	case intent.Navigational:
		lead = fmt.Sprintf("Find official %s resources and links", keyword)
	default:
		lead = fmt.Sprintf("Learn everything about %s", keyword)
	}
	if len(topics) > 0 {
		lead += ", including " + strings.Join(firstN(topics, 3), ", ")
	}
	return truncate(lead+".", maxMetaRunes)
}

func defaultDescription(keyword string, sec Section) string {
	switch sec.Kind {
	case KindIntro:
		return fmt.Sprintf("Introduce %s and answer the core question in the opening paragraph.", keyword)
	case KindFAQ:
		return fmt.Sprintf("Answer the questions searchers ask about %s in 40-60 words each.", keyword)
	}
	if len(sec.TopicTags) > 0 {
		return "Cover " + strings.Join(sec.TopicTags, ", ") + "."
	}
	return "Expand on " + strings.ToLower(sec.Heading) + "."
}

// applyCopy fills title, meta and descriptions from defaults, then
// overrides them with whatever the writer supplied.
func applyCopy(b *ContentBrief, c Copy) {
	b.Title = defaultTitle(b.Keyword, b.Intent.ContentFormat)
	b.MetaDescription = defaultMeta(b.Keyword, b.Intent.Intent, b.Topics.MustCover)
	for i := range b.Sections {
		b.Sections[i].Description = defaultDescription(b.Keyword, b.Sections[i])
	}

	if t := strings.TrimSpace(c.Title); t != "" {
		b.Title = t
	}
	if m := strings.TrimSpace(c.MetaDescription); m != "" {
		b.MetaDescription = truncate(m, maxMetaRunes)
	}
	for i := range b.Sections {
		if d := strings.TrimSpace(c.SectionDescriptions[b.Sections[i].Heading]); d != "" {
			b.Sections[i].Description = d
		}
	}
	b.UniqueAngles = dedupe(c.UniqueAngles)
}
