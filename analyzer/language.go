package analyzer

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"

	"github.com/seo-forecaster/backend/textfeatures"
)

const languageSampleChars = 2000

var (
	detector     lingua.LanguageDetector
	detectorOnce sync.Once
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Spanish, lingua.French, lingua.German, lingua.Portuguese, lingua.Italian).
			Build()
	})
	return detector
}

// DetectLanguage returns the lowercase ISO 639-1 code of text, or "" when
// the text is empty or no supported language is recognised.
func DetectLanguage(text string) string {
	text = textfeatures.Truncate(text, languageSampleChars)
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
