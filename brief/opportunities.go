package brief

import (
	"fmt"
	"strings"

	"github.com/seo-forecaster/backend/serp"
)

// Answer formats suggested for a question.
const (
	AnswerParagraph  = "paragraph"
	AnswerList       = "list"
	AnswerTable      = "table"
	AnswerDefinition = "definition"
)

func buildOpportunities(keyword string, f serp.Features) Opportunities {
	return Opportunities{
		FeaturedSnippet: snippetStrategy(keyword, f.FeaturedSnippet),
		FAQSchema:       faqSchemaQuestions(f),
		Other:           otherOpportunities(f),
	}
}

func snippetStrategy(keyword string, fs *serp.FeaturedSnippet) string {
	switch fs.Shape() {
	case "paragraph":
		return fmt.Sprintf("A paragraph snippet is shown. Answer %q in 40-60 words directly under a question-style heading.", keyword)
	case "list":
		n := max(len(fs.List), 5)
		return fmt.Sprintf("A list snippet is shown. Add a numbered list of at least %d short items under a clear H2 and keep each item to one line.", n)
	case "table":
		return "A table snippet is shown. Add a comparison table with clear column headers near the top of the page."
	default:
		return fmt.Sprintf("No featured snippet is shown. Open with a concise 40-60 word answer to %q to compete for one.", keyword)
	}
}

// faqSchemaQuestions are PAA then knowledge panel questions, capped.
func faqSchemaQuestions(f serp.Features) []string {
	var qs []string
	for _, q := range f.PeopleAlsoAsk {
		qs = append(qs, q.Question)
	}
	if f.KnowledgePanel != nil {
		qs = append(qs, f.KnowledgePanel.Questions...)
	}
	return firstN(dedupe(qs), maxFAQQuestions)
}

func otherOpportunities(f serp.Features) []string {
	var out []string
	if f.Has(serp.FeatureVideo) {
		out = append(out, "Video results appear. Embed a short walkthrough video with a descriptive title and transcript.")
	}
	if f.Has(serp.FeatureLocalPack) {
		out = append(out, "A local pack appears. Add LocalBusiness schema and keep the business profile name, address and phone consistent.")
	}
	if f.Has(serp.FeatureImages) {
		out = append(out, "Image results appear. Use original images with descriptive file names and alt text.")
	}
	if f.Has(serp.FeatureShopping) {
		out = append(out, "Shopping results appear. Add Product schema with price and availability.")
	}
	if f.Has(serp.FeatureNews) {
		out = append(out, "News results appear. Show a visible last-updated date and refresh the page with recent developments.")
	}
	if kp := f.KnowledgePanel; kp != nil && kp.Title != "" {
		out = append(out, fmt.Sprintf("A knowledge panel for %q appears. Mention the entity by its exact name and link to authoritative sources about it.", kp.Title))
	}
	return out
}

// questions lists PAA questions (high priority) and knowledge panel
// questions (medium), each placed in the body section sharing the most
// terms with it, or the FAQ when none does.
func questions(f serp.Features, sections []Section, kwTokens map[string]struct{}) []Question {
	fallback := introHeading
	for _, sec := range sections {
		if sec.Kind == KindFAQ {
			fallback = sec.Heading
		}
	}

	var out []Question
	seen := map[string]struct{}{}
	add := func(q, priority string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Question{
			Question:  q,
			Priority:  priority,
			Format:    answerFormat(q),
			Placement: placement(q, sections, kwTokens, fallback),
		})
	}
	for _, q := range f.PeopleAlsoAsk {
		add(q.Question, QuestionHigh)
	}
	if f.KnowledgePanel != nil {
		for _, q := range f.KnowledgePanel.Questions {
			add(q, QuestionMedium)
		}
	}
	return out
}

func placement(q string, sections []Section, kwTokens map[string]struct{}, fallback string) string {
	qTerms := terms(q, kwTokens)
	best, bestOverlap := fallback, 0
	for _, sec := range sections {
		if sec.Kind != KindBody {
			continue
		}
		secTerms := append(terms(sec.Heading, kwTokens), sec.TopicTags...)
		if n := overlap(secTerms, qTerms); n > bestOverlap {
			best, bestOverlap = sec.Heading, n
		}
	}
	return best
}

func answerFormat(q string) string {
	lower := strings.ToLower(q)
	switch {
	case strings.Contains(lower, " vs ") || strings.Contains(lower, "versus") ||
		strings.Contains(lower, "difference between") || strings.HasPrefix(lower, "compare"):
		return AnswerTable
	case strings.HasPrefix(lower, "how ") || strings.Contains(lower, " steps"):
		return AnswerList
	case strings.HasPrefix(lower, "what is") || strings.HasPrefix(lower, "what are") ||
		strings.HasPrefix(lower, "who is"):
		return AnswerDefinition
	default:
		return AnswerParagraph
	}
}
