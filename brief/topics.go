package brief

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/seo-forecaster/backend/serp"
)

const (
	mustCoverPercent = 40
	maxMustCover     = 12
	maxRelated       = 10
	maxEntities      = 15
	minTermRunes     = 4
	minEntityCount   = 2
)

var capitalizedPhrase = regexp.MustCompile(`[\p{Lu}][\p{L}\p{N}'&]*(?: +[\p{Lu}][\p{L}\p{N}'&]*)*`)

// buildTopics collects must-cover terms, related searches and entities.
func buildTopics(s *serp.EnrichedSerp, kwTokens map[string]struct{}) Topics {
	return Topics{
		MustCover: mustCover(s.Competitors, kwTokens),
		Related:   firstN(dedupe(s.Features.RelatedSearches), maxRelated),
		Entities:  entities(s),
	}
}

// competitorText is everything a competitor exposes: title, snippet and,
// when the page was fetched, its H2s and H3s.
func competitorText(c serp.Competitor) string {
	parts := []string{c.Title, c.Snippet}
	if c.Page != nil {
		for _, sec := range c.Page.Outline {
			parts = append(parts, sec.Heading)
			parts = append(parts, sec.Subheadings...)
		}
	}
	return strings.Join(parts, "\n")
}

// mustCover returns terms used by at least 40% of competitors, most common
// first. Keyword tokens are excluded.
func mustCover(competitors []serp.Competitor, kwTokens map[string]struct{}) []string {
	if len(competitors) == 0 {
		return nil
	}
	counts := map[string]*termCount{}
	order := 0
	for _, c := range competitors {
		for _, t := range terms(competitorText(c), kwTokens) {
			if utf8.RuneCountInString(t) < minTermRunes {
				continue
			}
			bump(counts, t, &order)
		}
	}

	var list []*termCount
	for _, tc := range counts {
		if tc.count*100 >= len(competitors)*mustCoverPercent {
			list = append(list, tc)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].term < list[j].term
	})
	var out []string
	for i := 0; i < len(list) && i < maxMustCover; i++ {
		out = append(out, list[i].term)
	}
	return out
}

// entities are the knowledge panel subject, its people-also-search-for
// list, then capitalised phrases shared by at least two competitors.
func entities(s *serp.EnrichedSerp) []string {
	var out []string
	if kp := s.Features.KnowledgePanel; kp != nil {
		out = append(out, kp.Title)
		out = append(out, kp.PeopleAlsoSearchFor...)
	}

	counts := map[string]*termCount{}
	display := map[string]string{}
	order := 0
	for _, c := range s.Competitors {
		seen := map[string]struct{}{}
		for _, m := range capitalizedPhrase.FindAllString(c.Title+"\n"+c.Snippet, -1) {
			phrase := trimLeadingStopWords(m)
			if utf8.RuneCountInString(phrase) < 3 {
				continue
			}
			key := strings.ToLower(phrase)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, ok := display[key]; !ok {
				display[key] = phrase
			}
			bump(counts, key, &order)
		}
	}
	for _, key := range topTerms(counts, len(counts)) {
		if counts[key].count >= minEntityCount {
			out = append(out, display[key])
		}
	}
	return firstN(dedupe(out), maxEntities)
}

// trimLeadingStopWords drops sentence-initial words such as "The" or "How"
// that are capitalised only by position.
func trimLeadingStopWords(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && isStopWord(strings.ToLower(words[0])) {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
