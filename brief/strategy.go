package brief

import (
	"math"

	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/serp"
)

type profile struct {
	minFactor float64
	maxFactor float64
	schema    []string
}

var profiles = map[intent.Intent]profile{
	intent.Informational: {0.9, 1.15, []string{"Article", "FAQPage"}},
	intent.Commercial:    {0.9, 1.1, []string{"Product", "Review", "ItemList", "FAQPage"}},
	intent.Transactional: {0.6, 1.0, []string{"Service", "Offer", "FAQPage"}},
	intent.Navigational:  {0.5, 0.9, []string{"Organization", "WebSite", "BreadcrumbList"}},
}

const readabilityBand = 5

// buildStrategy derives the word-count band, readability band and schema
// suggestions from the intent and the SERP medians.
func buildStrategy(res intent.Result, s *serp.EnrichedSerp) Strategy {
	p, ok := profiles[res.Intent]
	if !ok {
		p = profiles[intent.Informational]
	}

	target := int(math.Round(s.Medians.WordCount))
	flesch := int(math.Round(s.Medians.Flesch))

	schema := append([]string(nil), p.schema...)
	switch {
	case res.Intent == intent.Informational && res.ContentFormat == intent.FormatHowTo:
		schema = append(schema, "HowTo")
	case res.Intent == intent.Transactional && s.Features.Has(serp.FeatureShopping):
		schema = append(schema, "Product")
	}
	if s.Features.Has(serp.FeatureLocalPack) {
		schema = append(schema, "LocalBusiness")
	}

	return Strategy{
		ContentFormat: res.ContentFormat,
		WordCount: Range{
			Min:    int(math.Round(float64(target) * p.minFactor)),
			Target: target,
			Max:    int(math.Round(float64(target) * p.maxFactor)),
		},
		Readability: Range{
			Min:    max(0, flesch-readabilityBand),
			Target: flesch,
			Max:    min(100, flesch+readabilityBand),
		},
		SchemaTypes: schema,
	}
}
