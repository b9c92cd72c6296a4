package brief

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/semantic"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/textfeatures"
)

// Gap actions.
const (
	ActionIncrease = "INCREASE"
	ActionDecrease = "DECREASE"
	ActionMaintain = "MAINTAIN"
	ActionSimplify = "SIMPLIFY"
	ActionAddDepth = "ADD_DEPTH"
)

// Status is the fate of a section when revising an existing page.
type Status string

const (
	StatusKeep   Status = "KEEP"
	StatusModify Status = "MODIFY"
	StatusAdd    Status = "ADD"
	StatusRemove Status = "REMOVE"
)

// Priority ranks improvement plan items.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

const (
	keepSimilarity      = 0.5
	modifySimilarity    = 0.2
	countTolerance      = 0.10
	highRelativeGap     = 0.3
	mediumRelativeGap   = 0.1
	highSemanticGap     = 0.1
	mediumSemanticGap   = 0.05
	minTitleRunes       = 30
	maxTitleRunes       = 60
	missingTopicsHigh   = 3
	maxPriorityActions  = 5
	defaultSentenceSize = 20
)

// PageMetrics are the measured signals of the existing page.
type PageMetrics struct {
	Title               string   `json:"title"`
	WordCount           int      `json:"word_count"`
	Flesch              float64  `json:"flesch_reading_ease"`
	AvgWordsPerSentence float64  `json:"avg_words_per_sentence"`
	InternalLinks       int      `json:"internal_links"`
	SchemaTotal         int      `json:"schema_total"`
	SchemaTypes         []string `json:"schema_types,omitempty"`
	Semantic            *float64 `json:"semantic_score,omitempty"`
}

// Gap compares one metric against its SERP-derived target.
type Gap struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Delta   float64 `json:"delta"`
	Action  string  `json:"action"`
}

// Gaps holds every metric delta. Semantic is nil without an embedder.
type Gaps struct {
	WordCount     Gap  `json:"word_count"`
	Readability   Gap  `json:"readability"`
	InternalLinks Gap  `json:"internal_links"`
	Schema        Gap  `json:"schema"`
	Semantic      *Gap `json:"semantic,omitempty"`
}

// SectionStatus maps a proposed (or removable existing) section to a status.
type SectionStatus struct {
	Heading    string  `json:"heading"`
	Status     Status  `json:"status"`
	Existing   string  `json:"existing_heading,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Annotation is an original-versus-improved text pair.
type Annotation struct {
	Element  string `json:"element"`
	Original string `json:"original"`
	Improved string `json:"improved"`
	Reason   string `json:"reason"`
}

// PlanItem is one ranked improvement.
type PlanItem struct {
	Metric         string   `json:"metric"`
	Priority       Priority `json:"priority"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	Current        float64  `json:"current"`
	Target         float64  `json:"target"`
	Delta          float64  `json:"delta"`
}

// Plan is the improvement plan, sorted High to Low.
type Plan struct {
	Items           []PlanItem `json:"items"`
	PriorityActions []PlanItem `json:"priority_actions"`
	MissingTopics   []string   `json:"missing_topics,omitempty"`
}

// ExistingContent is the existing-page part of a brief.
type ExistingContent struct {
	URL         string          `json:"url"`
	Current     PageMetrics     `json:"current"`
	Gaps        Gaps            `json:"gaps"`
	Sections    []SectionStatus `json:"section_status"`
	Annotations []Annotation    `json:"annotations,omitempty"`
	Plan        Plan            `json:"improvement_plan"`
}

// Kind implements Mode.
func (*ExistingContent) Kind() string { return ModeExisting }

// countGap applies the 10% tolerance band around target.
func countGap(current, target float64) Gap {
	g := Gap{Current: current, Target: target, Delta: round1(target - current), Action: ActionMaintain}
	tolerance := countTolerance * target
	switch {
	case g.Delta > tolerance:
		g.Action = ActionIncrease
	case g.Delta < -tolerance:
		g.Action = ActionDecrease
	}
	return g
}

// additiveGap is countGap for metrics where exceeding the SERP is harmless.
func additiveGap(current, target float64) Gap {
	g := countGap(current, target)
	if g.Action == ActionDecrease {
		g.Action = ActionMaintain
	}
	return g
}

func readabilityGap(current, target float64) Gap {
	g := Gap{Current: round1(current), Target: target, Delta: round1(target - current), Action: ActionMaintain}
	switch {
	case current < target-readabilityBand:
		g.Action = ActionSimplify
	case current > target+readabilityBand:
		g.Action = ActionAddDepth
	}
	return g
}

func semanticGap(current, target float64) *Gap {
	g := &Gap{Current: round3(current), Target: round3(target), Delta: round3(target - current), Action: ActionMaintain}
	if g.Delta >= mediumSemanticGap {
		g.Action = ActionIncrease
	}
	return g
}

// analyzeExisting diffs page against the synthesized brief b.
func (s *Synthesizer) analyzeExisting(ctx context.Context, b *ContentBrief, sp *serp.EnrichedSerp, page *analyzer.PageAnalysis, kwTokens map[string]struct{}) *ExistingContent {
	ex := &ExistingContent{
		URL: page.URL,
		Current: PageMetrics{
			Title:               page.Title,
			WordCount:           page.Features.WordCount,
			Flesch:              round1(page.Features.Flesch),
			AvgWordsPerSentence: round1(page.Features.AvgWordsPerSentence),
			InternalLinks:       page.InternalLinks,
			SchemaTotal:         page.SchemaTotal,
			SchemaTypes:         page.SchemaTypes,
		},
	}

	ex.Gaps = Gaps{
		WordCount:     countGap(float64(page.Features.WordCount), float64(b.Strategy.WordCount.Target)),
		Readability:   readabilityGap(page.Features.Flesch, float64(b.Strategy.Readability.Target)),
		InternalLinks: additiveGap(float64(page.InternalLinks), math.Round(sp.Medians.InternalLinks)),
		Schema:        additiveGap(float64(page.SchemaTotal), math.Round(sp.Medians.SchemaTotal)),
	}
	if s.embedder != nil {
		scores, err := semantic.Similarities(ctx, s.embedder, b.Keyword, []string{serp.PageTopicText(page)})
		if err != nil {
			s.logger.Warn("existing page semantic scoring failed", zap.String("url", page.URL), zap.Error(err))
		} else {
			score := scores[0]
			ex.Current.Semantic = &score
			ex.Gaps.Semantic = semanticGap(score, sp.Medians.Semantic)
		}
	}

	ex.Sections, ex.Annotations = sectionStatuses(b.Sections, page, kwTokens)
	ex.Annotations = append(pageAnnotations(b, sp, page), ex.Annotations...)
	ex.Plan = improvementPlan(ex, missingTopics(b.Topics.MustCover, page))
	return ex
}

// sectionStatuses matches proposed sections to existing H2s. Existing H2s
// that match nothing are appended as REMOVE.
func sectionStatuses(proposed []Section, page *analyzer.PageAnalysis, kwTokens map[string]struct{}) ([]SectionStatus, []Annotation) {
	existing := page.H2s()
	existingTerms := make([][]string, len(existing))
	for i, h := range existing {
		existingTerms[i] = terms(h, kwTokens)
	}

	var statuses []SectionStatus
	var notes []Annotation
	for _, sec := range proposed {
		if sec.Kind == KindIntro {
			st := SectionStatus{Heading: sec.Heading, Status: StatusAdd}
			if page.FirstParagraph != "" {
				st.Status, st.Similarity = StatusKeep, 1
			}
			statuses = append(statuses, st)
			continue
		}

		toks := terms(sec.Heading, kwTokens)
		best, bestSim := -1, 0.0
		for i, et := range existingTerms {
			if sim := jaccard(toks, et); sim > bestSim {
				best, bestSim = i, sim
			}
		}

		st := SectionStatus{Heading: sec.Heading, Status: StatusAdd, Similarity: round3(bestSim)}
		switch {
		case bestSim >= keepSimilarity:
			st.Status, st.Existing = StatusKeep, existing[best]
		case bestSim >= modifySimilarity:
			st.Status, st.Existing = StatusModify, existing[best]
			notes = append(notes, Annotation{
				Element:  "heading",
				Original: existing[best],
				Improved: sec.Heading,
				Reason:   headingReason(sec),
			})
		}
		statuses = append(statuses, st)
	}

	for i, h := range existing {
		if len(existingTerms[i]) == 0 {
			continue
		}
		matched := false
		for _, sec := range proposed {
			if jaccard(existingTerms[i], terms(sec.Heading, kwTokens)) >= modifySimilarity {
				matched = true
				break
			}
		}
		if !matched {
			statuses = append(statuses, SectionStatus{Heading: h, Status: StatusRemove, Existing: h})
		}
	}
	return statuses, notes
}

func headingReason(sec Section) string {
	if len(sec.TopicTags) == 0 {
		return "Align the heading with how ranking pages frame this section."
	}
	return fmt.Sprintf("Align the heading with how ranking pages frame this section and cover %s.", strings.Join(sec.TopicTags, ", "))
}

// pageAnnotations covers the title, meta description and first paragraph.
func pageAnnotations(b *ContentBrief, sp *serp.EnrichedSerp, page *analyzer.PageAnalysis) []Annotation {
	var notes []Annotation
	kw := strings.ToLower(b.Keyword)

	var titleIssues []string
	if !strings.Contains(strings.ToLower(page.Title), kw) {
		titleIssues = append(titleIssues, "does not contain the keyword")
	}
	switch n := utf8.RuneCountInString(page.Title); {
	case n < minTitleRunes:
		titleIssues = append(titleIssues, fmt.Sprintf("is %d characters, shorter than %d", n, minTitleRunes))
	case n > maxTitleRunes:
		titleIssues = append(titleIssues, fmt.Sprintf("is %d characters, longer than %d", n, maxTitleRunes))
	}
	if len(titleIssues) > 0 {
		notes = append(notes, Annotation{
			Element:  "title",
			Original: page.Title,
			Improved: b.Title,
			Reason:   "Title " + strings.Join(titleIssues, " and ") + ".",
		})
	}

	switch n := utf8.RuneCountInString(page.MetaDescription); {
	case n == 0:
		notes = append(notes, Annotation{Element: "meta_description", Improved: b.MetaDescription, Reason: "Meta description is missing."})
	case n > maxMetaRunes:
		notes = append(notes, Annotation{
			Element:  "meta_description",
			Original: page.MetaDescription,
			Improved: b.MetaDescription,
			Reason:   fmt.Sprintf("Meta description is %d characters and will be truncated above %d.", n, maxMetaRunes),
		})
	}

	if fp := page.FirstParagraph; fp != "" {
		limit := int(math.Round(sp.Medians.AvgWordsPerSentence))
		if limit <= 0 {
			limit = defaultSentenceSize
		}
		awps := textfeatures.New(-1).Extract(fp).AvgWordsPerSentence
		var issues []string
		if awps > float64(limit) {
			issues = append(issues, fmt.Sprintf("averages %.0f words per sentence against %d for ranking pages", awps, limit))
		}
		missing := !strings.Contains(strings.ToLower(fp), kw)
		if missing {
			issues = append(issues, "does not mention the keyword")
		}
		if len(issues) > 0 {
			notes = append(notes, Annotation{
				Element:  "first_paragraph",
				Original: fp,
				Improved: rewriteOpening(b.Keyword, fp, limit, missing),
				Reason:   "First paragraph " + strings.Join(issues, " and ") + ".",
			})
		}
	}
	return notes
}

var (
	sentenceSplit = regexp.MustCompile(`[^.!?]+[.!?]*`)
	clauseSplit   = regexp.MustCompile(`\s*[,;:]\s+`)
)

// rewriteOpening splits sentences longer than limit words at clause
// boundaries and leads with the keyword when it is missing.
func rewriteOpening(keyword, paragraph string, limit int, leadWithKeyword bool) string {
	var out []string
	for _, sentence := range sentenceSplit.FindAllString(paragraph, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if len(textfeatures.Words(sentence)) <= limit {
			out = append(out, sentence)
			continue
		}
		body := strings.TrimRight(sentence, ".!?")
		for _, clause := range clauseSplit.Split(body, -1) {
			if clause = strings.TrimSpace(clause); clause != "" {
				out = append(out, capitalize(clause)+".")
			}
		}
	}
	text := strings.Join(out, " ")
	if leadWithKeyword {
		text = titleCase(keyword) + ": " + text
	}
	return text
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// missingTopics returns must-cover terms absent from the page.
func missingTopics(mustCover []string, page *analyzer.PageAnalysis) []string {
	parts := []string{page.Title, page.MetaDescription, page.MainText}
	for _, h := range page.Headings {
		parts = append(parts, h.Text)
	}
	parts = append(parts, page.Paragraphs...)
	have := toSet(tokens(strings.Join(parts, " ")))

	var missing []string
	for _, t := range mustCover {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

func relativePriority(delta, target float64) Priority {
	if target <= 0 {
		return PriorityLow
	}
	switch rel := math.Abs(delta) / target; {
	case rel >= highRelativeGap:
		return PriorityHigh
	case rel >= mediumRelativeGap:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func semanticPriority(delta float64) Priority {
	switch d := math.Abs(delta); {
	case d >= highSemanticGap:
		return PriorityHigh
	case d >= mediumSemanticGap:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// improvementPlan builds one item per metric gap plus a missing-topics item,
// stably sorted High to Low.
func improvementPlan(ex *ExistingContent, missing []string) Plan {
	g := ex.Gaps
	items := []PlanItem{
		{
			Metric:         "word_count",
			Priority:       relativePriority(g.WordCount.Delta, g.WordCount.Target),
			Issue:          fmt.Sprintf("Page has %.0f words; ranking pages have a median of %.0f.", g.WordCount.Current, g.WordCount.Target),
			Recommendation: wordCountAdvice(g.WordCount),
		},
		{
			Metric:         "readability",
			Priority:       relativePriority(g.Readability.Delta, g.Readability.Target),
			Issue:          fmt.Sprintf("Flesch reading ease is %.1f against a target of %.0f.", g.Readability.Current, g.Readability.Target),
			Recommendation: readabilityAdvice(g.Readability),
		},
		{
			Metric:         "internal_links",
			Priority:       relativePriority(g.InternalLinks.Delta, g.InternalLinks.Target),
			Issue:          fmt.Sprintf("Page has %.0f internal links; ranking pages have a median of %.0f.", g.InternalLinks.Current, g.InternalLinks.Target),
			Recommendation: additiveAdvice(g.InternalLinks, "internal links to related pages"),
		},
		{
			Metric:         "schema",
			Priority:       relativePriority(g.Schema.Delta, g.Schema.Target),
			Issue:          fmt.Sprintf("Page declares %.0f schema types; ranking pages have a median of %.0f.", g.Schema.Current, g.Schema.Target),
			Recommendation: additiveAdvice(g.Schema, "structured data types"),
		},
	}
	for i := range items {
		items[i].Current, items[i].Target, items[i].Delta = gapOf(g, items[i].Metric)
	}

	if g.Semantic != nil {
		items = append(items, PlanItem{
			Metric:         "semantic",
			Priority:       semanticPriority(g.Semantic.Delta),
			Issue:          fmt.Sprintf("Topical similarity to the keyword is %.2f against a SERP median of %.2f.", g.Semantic.Current, g.Semantic.Target),
			Recommendation: semanticAdvice(*g.Semantic),
			Current:        g.Semantic.Current,
			Target:         g.Semantic.Target,
			Delta:          g.Semantic.Delta,
		})
	}

	if len(missing) > 0 {
		p := PriorityMedium
		if len(missing) >= missingTopicsHigh {
			p = PriorityHigh
		}
		items = append(items, PlanItem{
			Metric:         "topics",
			Priority:       p,
			Issue:          fmt.Sprintf("%d topics covered by ranking pages are missing.", len(missing)),
			Recommendation: "Add coverage of " + strings.Join(missing, ", ") + ".",
			Delta:          float64(len(missing)),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.rank() < items[j].Priority.rank()
	})
	return Plan{
		Items:           items,
		PriorityActions: append([]PlanItem(nil), firstN(items, maxPriorityActions)...),
		MissingTopics:   missing,
	}
}

func gapOf(g Gaps, metric string) (current, target, delta float64) {
	var x Gap
	switch metric {
	case "word_count":
		x = g.WordCount
	case "readability":
		x = g.Readability
	case "internal_links":
		x = g.InternalLinks
	case "schema":
		x = g.Schema
	}
	return x.Current, x.Target, x.Delta
}

func wordCountAdvice(g Gap) string {
	switch g.Action {
	case ActionIncrease:
		return fmt.Sprintf("Add about %.0f words, prioritising the sections marked ADD.", g.Delta)
	case ActionDecrease:
		return fmt.Sprintf("Trim about %.0f words of repetitive or off-topic content.", -g.Delta)
	default:
		return "Length is in line with ranking pages."
	}
}

func readabilityAdvice(g Gap) string {
	switch g.Action {
	case ActionSimplify:
		return "Shorten sentences and prefer plain words to raise reading ease."
	case ActionAddDepth:
		return "Add detail and precise terminology; the page reads simpler than ranking pages."
	default:
		return "Reading level is in line with ranking pages."
	}
}

func additiveAdvice(g Gap, what string) string {
	if g.Action == ActionIncrease {
		return fmt.Sprintf("Add about %.0f more %s.", g.Delta, what)
	}
	return fmt.Sprintf("The number of %s is in line with ranking pages.", what)
}

func semanticAdvice(g Gap) string {
	if g.Action == ActionIncrease {
		return "Refocus the title, H1 and opening paragraphs on the keyword and its core subtopics."
	}
	return "Topical focus is in line with ranking pages."
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
