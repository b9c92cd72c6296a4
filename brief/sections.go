package brief

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/seo-forecaster/backend/serp"
)

const (
	clusterSimilarity   = 0.5
	minClusterCoverage  = 2
	maxBodySections     = 8
	minBodySections     = 3
	maxSubheadings      = 4
	maxTopicTags        = 5
	maxKeyPoints        = 3
	maxFAQQuestions     = 8
	introPercent        = 10
	faqPercent          = 20
	wordsPerFAQQuestion = 60
)

const (
	introHeading = "Introduction"
	faqHeading   = "Frequently Asked Questions"
)

type cluster struct {
	seed        []string
	headings    []string
	competitors map[int]struct{}
	positions   []float64
	subs        map[string]*termCount
	subText     map[string]string
	subOrder    int
	terms       map[string]*termCount
	termOrder   int
}

func (c *cluster) meanPosition() float64 {
	sum := 0.0
	for _, p := range c.positions {
		sum += p
	}
	return sum / float64(len(c.positions))
}

// shortestHeading picks the most concise phrasing; ties keep the earliest.
func (c *cluster) shortestHeading() string {
	best := c.headings[0]
	for _, h := range c.headings[1:] {
		if utf8.RuneCountInString(h) < utf8.RuneCountInString(best) {
			best = h
		}
	}
	return best
}

func (c *cluster) topSubheadings() []string {
	var out []string
	for _, key := range topTerms(c.subs, maxSubheadings) {
		out = append(out, c.subText[key])
	}
	return out
}

// clusterHeadings groups competitor H2s greedily, in rank order, by token
// Jaccard against each cluster's first heading.
func clusterHeadings(competitors []serp.Competitor, kwTokens map[string]struct{}) []*cluster {
	var clusters []*cluster
	for rank, c := range competitors {
		if c.Page == nil || c.Page.Err != "" || len(c.Page.Outline) == 0 {
			continue
		}
		n := len(c.Page.Outline)
		for j, sec := range c.Page.Outline {
			toks := terms(sec.Heading, kwTokens)
			if len(toks) == 0 {
				continue
			}

			var best *cluster
			bestSim := 0.0
			for _, cl := range clusters {
				if sim := jaccard(toks, cl.seed); sim >= clusterSimilarity && sim > bestSim {
					best, bestSim = cl, sim
				}
			}
			if best == nil {
				best = &cluster{
					seed:        toks,
					competitors: map[int]struct{}{},
					subs:        map[string]*termCount{},
					subText:     map[string]string{},
					terms:       map[string]*termCount{},
				}
				clusters = append(clusters, best)
			}

			best.headings = append(best.headings, strings.TrimSpace(sec.Heading))
			best.competitors[rank] = struct{}{}
			best.positions = append(best.positions, float64(j)/float64(n))
			for _, t := range toks {
				bump(best.terms, t, &best.termOrder)
			}
			for _, sub := range sec.Subheadings {
				key := strings.ToLower(strings.TrimSpace(sub))
				if key == "" {
					continue
				}
				if _, ok := best.subText[key]; !ok {
					best.subText[key] = strings.TrimSpace(sub)
				}
				bump(best.subs, key, &best.subOrder)
				for _, t := range terms(sub, kwTokens) {
					bump(best.terms, t, &best.termOrder)
				}
			}
		}
	}
	return clusters
}

// bodySections turns the qualifying clusters into sections, falling back to
// related searches and then PAA questions when too few qualify.
func bodySections(s *serp.EnrichedSerp, kwTokens map[string]struct{}) []Section {
	var qualified []*cluster
	for _, cl := range clusterHeadings(s.Competitors, kwTokens) {
		if len(cl.competitors) >= minClusterCoverage {
			qualified = append(qualified, cl)
		}
	}
	if len(qualified) > maxBodySections {
		// keep the most widely covered; earlier headings break ties
		sort.SliceStable(qualified, func(i, j int) bool {
			ci, cj := len(qualified[i].competitors), len(qualified[j].competitors)
			if ci != cj {
				return ci > cj
			}
			return qualified[i].meanPosition() < qualified[j].meanPosition()
		})
		qualified = qualified[:maxBodySections]
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		pi, pj := qualified[i].meanPosition(), qualified[j].meanPosition()
		if pi != pj {
			return pi < pj
		}
		return len(qualified[i].competitors) > len(qualified[j].competitors)
	})

	sections := make([]Section, 0, len(qualified))
	for _, cl := range qualified {
		sections = append(sections, Section{
			Heading:     cl.shortestHeading(),
			Kind:        KindBody,
			Subheadings: cl.topSubheadings(),
			TopicTags:   topTerms(cl.terms, maxTopicTags),
			weight:      len(cl.competitors),
		})
	}

	fill := func(heading string) {
		if len(sections) >= minBodySections {
			return
		}
		toks := terms(heading, kwTokens)
		if len(toks) == 0 {
			return
		}
		for _, sec := range sections {
			if jaccard(toks, terms(sec.Heading, kwTokens)) >= clusterSimilarity {
				return
			}
		}
		sections = append(sections, Section{
			Heading:   heading,
			Kind:      KindBody,
			TopicTags: firstN(toks, maxTopicTags),
			weight:    1,
		})
	}
	for _, rs := range s.Features.RelatedSearches {
		fill(titleCase(rs))
	}
	for _, q := range s.Features.PeopleAlsoAsk {
		fill(strings.TrimSpace(q.Question))
	}

	for i := range sections {
		sections[i].KeyPoints = keyPoints(sections[i], s.Features.PeopleAlsoAsk, kwTokens)
	}
	return sections
}

// keyPoints prefers PAA answers whose question shares a term with the
// section; otherwise the subsection headings.
func keyPoints(sec Section, paa []serp.PAAItem, kwTokens map[string]struct{}) []string {
	var points []string
	for _, q := range paa {
		if len(points) == maxKeyPoints {
			break
		}
		if overlap(sec.TopicTags, terms(q.Question, kwTokens)) == 0 {
			continue
		}
		if q.Snippet != "" {
			points = append(points, q.Snippet)
		} else {
			points = append(points, q.Question)
		}
	}
	if len(points) == 0 {
		points = append(points, sec.Subheadings...)
	}
	return points
}

// faqQuestions are the PAA questions, deduplicated and capped.
func faqQuestions(s *serp.EnrichedSerp) []string {
	var qs []string
	for _, q := range s.Features.PeopleAlsoAsk {
		qs = append(qs, q.Question)
	}
	return firstN(dedupe(qs), maxFAQQuestions)
}

// outline assembles intro, body and FAQ sections and apportions total.
func outline(s *serp.EnrichedSerp, kwTokens map[string]struct{}, total int) []Section {
	sections := []Section{{Heading: introHeading, Kind: KindIntro}}
	if fs := s.Features.FeaturedSnippet; fs != nil && fs.Snippet != "" {
		sections[0].KeyPoints = []string{fs.Snippet}
	}
	sections = append(sections, bodySections(s, kwTokens)...)
	if qs := faqQuestions(s); len(qs) > 0 {
		sections = append(sections, Section{Heading: faqHeading, Kind: KindFAQ, Subheadings: qs})
	}
	apportion(sections, total)
	return sections
}

// apportion assigns TargetWords so the sections sum exactly to total.
// The intro takes 10%, the FAQ min(20%, 60 per question), and body
// sections split the rest by weight. Flooring leftovers go to the first
// body section, or to the intro when there is none.
func apportion(sections []Section, total int) {
	if total < 0 {
		total = 0
	}
	rest := total
	weights := 0
	firstBody := -1
	intro := -1

	for i := range sections {
		sections[i].TargetWords = 0
		switch sections[i].Kind {
		case KindIntro:
			intro = i
			sections[i].TargetWords = total * introPercent / 100
		case KindFAQ:
			sections[i].TargetWords = min(total*faqPercent/100, wordsPerFAQQuestion*len(sections[i].Subheadings))
		case KindBody:
			if firstBody < 0 {
				firstBody = i
			}
			weights += max(sections[i].weight, 1)
		}
		rest -= sections[i].TargetWords
	}

	if weights > 0 {
		assigned := 0
		for i := range sections {
			if sections[i].Kind != KindBody {
				continue
			}
			share := rest * max(sections[i].weight, 1) / weights
			sections[i].TargetWords = share
			assigned += share
		}
		sections[firstBody].TargetWords += rest - assigned
		return
	}
	if intro >= 0 {
		sections[intro].TargetWords += rest
	} else if len(sections) > 0 {
		sections[0].TargetWords += rest
	}
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
