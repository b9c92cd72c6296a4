package brief

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var stopWords = toSet(strings.Fields(`
	the a an and or but in on at to for of with by
	is are was were be been have has had do does did
	will would should could may might must can
	this that these those what which who when where why how
	your from directly their them they we our you it its
	as if than so up out just now then more most very
	about into through during before after above below between under
	again further once here there all each both few other some such
	no nor not only own same too vs versus`))

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// tokens lowercases s and splits it on anything that is not a letter or digit.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// terms returns the distinct non-stopword tokens of s that are not in skip,
// in first-seen order.
func terms(s string, skip map[string]struct{}) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, t := range tokens(s) {
		if isStopWord(t) {
			continue
		}
		if _, ok := skip[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// jaccard is the token-set Jaccard similarity. Two empty sets score 0.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := toSet(a)
	inter := 0
	union := len(set)
	seen := map[string]struct{}{}
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func overlap(a, b []string) int {
	set := toSet(a)
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// truncate shortens s to at most max runes on a word boundary.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max-3])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.") + "..."
}

// dedupe drops case-insensitive duplicates and empty strings, keeping order.
func dedupe(items []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

type termCount struct {
	term  string
	count int
	first int
}

// topTerms returns up to n keys of counts, highest count first, then by
// first appearance.
func topTerms(counts map[string]*termCount, n int) []string {
	list := make([]*termCount, 0, len(counts))
	for _, c := range counts {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].first < list[j].first
	})
	var out []string
	for i := 0; i < len(list) && i < n; i++ {
		out = append(out, list[i].term)
	}
	return out
}

func bump(counts map[string]*termCount, term string, order *int) {
	if c, ok := counts[term]; ok {
		c.count++
		return
	}
	counts[term] = &termCount{term: term, count: 1, first: *order}
	*order++
}
