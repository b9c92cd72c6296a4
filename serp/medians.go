package serp

import (
	"math"
	"sort"
)

// Guards are the sanity floors applied to computed medians. A readability
// median below ReadabilityFloor has only ever come from a corrupted batch of
// cached pages, so it is replaced rather than trusted.
type Guards struct {
	ReadabilityFloor   float64
	ReadabilityDefault float64
	WordCountFloor     float64
	WordCountDefault   float64
}

// DefaultGuards returns the standard sanity floors.
func DefaultGuards() Guards {
	return Guards{ReadabilityFloor: 10, ReadabilityDefault: 55, WordCountFloor: 100, WordCountDefault: 1500}
}

// DefaultMedians are used when a SERP has no valid competitors.
func DefaultMedians() Medians {
	return Medians{
		DT:                  50,
		RefDomains:          30,
		WordCount:           2000,
		SentenceCount:       100,
		AvgWordsPerSentence: 20,
		Flesch:              60,
		SchemaTotal:         2,
		SchemaUnique:        1,
		InternalLinks:       10,
		RichFeatures:        1,
	}
}

// ComputeMedians aggregates the first topN competitors. Pages that failed
// to extract are excluded from content metrics, unknown authority from
// authority metrics, and zero semantic scores from the semantic median.
func ComputeMedians(competitors []Competitor, topN int, g Guards) Medians {
	if topN > 0 && len(competitors) > topN {
		competitors = competitors[:topN]
	}
	def := DefaultMedians()
	m := Medians{}

	var dt, refs []float64
	var wc, sc, awps, flesch, schemaT, schemaU, links, rich, sem []float64
	for _, c := range competitors {
		if c.Authority.Known {
			dt = append(dt, c.Authority.DT)
			refs = append(refs, c.Authority.RefDomains)
		}
		if !c.Valid() {
			continue
		}
		p := c.Page
		wc = append(wc, float64(p.Features.WordCount))
		sc = append(sc, float64(p.Features.SentenceCount))
		awps = append(awps, p.Features.AvgWordsPerSentence)
		flesch = append(flesch, p.Features.Flesch)
		schemaT = append(schemaT, float64(p.SchemaTotal))
		schemaU = append(schemaU, float64(p.SchemaUnique))
		links = append(links, float64(p.InternalLinks))
		rich = append(rich, float64(c.RichFeatures))
		if c.SemanticScore > 0 {
			sem = append(sem, c.SemanticScore)
		}
	}
	m.ValidEntries = len(wc)

	if len(dt) > 0 {
		m.DT, m.RefDomains = Median(dt), Median(refs)
	} else {
		m.DT, m.RefDomains = def.DT, def.RefDomains
		m.Defaulted = append(m.Defaulted, "authority")
	}

	if len(wc) > 0 {
		m.WordCount = Median(wc)
		m.SentenceCount = Median(sc)
		m.AvgWordsPerSentence = Median(awps)
		m.Flesch = Median(flesch)
		m.SchemaTotal = Median(schemaT)
		m.SchemaUnique = Median(schemaU)
		m.InternalLinks = Median(links)
		m.RichFeatures = Median(rich)
	} else {
		m.WordCount = def.WordCount
		m.SentenceCount = def.SentenceCount
		m.AvgWordsPerSentence = def.AvgWordsPerSentence
		m.Flesch = def.Flesch
		m.SchemaTotal = def.SchemaTotal
		m.SchemaUnique = def.SchemaUnique
		m.InternalLinks = def.InternalLinks
		m.RichFeatures = def.RichFeatures
		m.Defaulted = append(m.Defaulted, "content")
	}

	if len(sem) > 0 {
		m.Semantic = Median(sem)
	}

	m.ApplyGuards(g)
	return m
}

// ApplyGuards replaces implausible medians and records which were replaced.
// It is safe to call on medians loaded from an older cache entry.
func (m *Medians) ApplyGuards(g Guards) {
	if g.ReadabilityFloor > 0 && m.Flesch < g.ReadabilityFloor {
		m.Flesch = g.ReadabilityDefault
		m.addGuard("flesch_reading_ease_score")
	}
	if g.WordCountFloor > 0 && m.WordCount < g.WordCountFloor {
		m.WordCount = g.WordCountDefault
		m.addGuard("word_count")
	}
}

func (m *Medians) addGuard(name string) {
	for _, g := range m.Guarded {
		if g == name {
			return
		}
	}
	m.Guarded = append(m.Guarded, name)
}

// Median returns the median of values, or 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
