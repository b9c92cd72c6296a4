// Package textfeatures turns page text into length and readability signals.
package textfeatures

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSyllableSample is the number of leading words used to estimate
	// syllables per word. Keeping it at 100 keeps scores comparable with
	// previously cached enrichments; readability for long pages therefore
	// depends on how their first 100 words read.
	DefaultSyllableSample = 100

	// defaultSyllablesPerWord is used when the text is shorter than the sample.
	defaultSyllablesPerWord = 1.5

	// wordsPerSentenceEstimate is used when no terminator is found.
	wordsPerSentenceEstimate = 15
)

var sentenceTerminators = regexp.MustCompile(`[.!?]+`)

// Features are the numeric signals extracted from one page.
// A zero value means the page could not be extracted and must be
// treated as unknown.
type Features struct {
	WordCount           int     `json:"word_count"`
	SentenceCount       int     `json:"sentence_count"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	Flesch              float64 `json:"flesch_reading_ease"`
}

// Valid reports whether the features came from real content.
func (f Features) Valid() bool {
	return f.WordCount > 0
}

// Extractor computes Features. The zero value samples syllables over
// the whole text; use New for the default sample size.
type Extractor struct {
	sampleWords int
}

// New returns an Extractor that estimates syllables over the first
// sampleWords words. A negative sampleWords means the whole text.
func New(sampleWords int) *Extractor {
	if sampleWords == 0 {
		sampleWords = DefaultSyllableSample
	}
	return &Extractor{sampleWords: sampleWords}
}

// Extract computes word count, sentence count and Flesch reading ease.
func (e *Extractor) Extract(text string) Features {
	words := Words(text)
	wc := len(words)
	if wc == 0 {
		return Features{}
	}

	sentences := len(sentenceTerminators.FindAllStringIndex(text, -1))
	if sentences == 0 {
		sentences = max(1, wc/wordsPerSentenceEstimate)
	}

	wps := float64(wc) / float64(sentences)
	return Features{
		WordCount:           wc,
		SentenceCount:       sentences,
		AvgWordsPerSentence: math.Round(wps*100) / 100,
		Flesch:              flesch(wps, e.syllablesPerWord(words)),
	}
}

func (e *Extractor) syllablesPerWord(words []string) float64 {
	sample := words
	if e.sampleWords > 0 {
		if len(words) < e.sampleWords {
			return defaultSyllablesPerWord
		}
		sample = words[:e.sampleWords]
	}
	total := 0
	for _, w := range sample {
		total += CountSyllables(w)
	}
	return float64(total) / float64(len(sample))
}

func flesch(wordsPerSentence, syllablesPerWord float64) float64 {
	score := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

// Words splits text on whitespace and keeps tokens containing at least
// one letter or digit, trimmed of surrounding punctuation.
func Words(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CountSyllables estimates the syllables in one word by counting vowel
// clusters, with corrections for a silent trailing e and a consonant+le
// ending. It never returns less than 1.
func CountSyllables(word string) int {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	w := []rune(b.String())
	if len(w) == 0 {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	n := len(w)
	if w[n-1] == 'e' && count > 1 {
		count--
	}
	if n > 2 && w[n-2] == 'l' && w[n-1] == 'e' && !isVowel(w[n-3]) {
		count++
	}
	return max(1, count)
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiouy", r)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
