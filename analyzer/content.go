package analyzer

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	// JSON-LD "@type" values and microdata itemtype URLs.
	jsonLDType    = regexp.MustCompile(`"@type"\s*:\s*"([^"]+)"`)
	microdataType = regexp.MustCompile(`schema\.org/([^"/\s]+)`)

	noiseClass = regexp.MustCompile(`(?i)\b(nav|navbar|menu|sidebar|footer|comment|comments|widget|promo|share|social|cookie|breadcrumb)\b`)
)

const noiseTags = "script, style, nav, header, footer, aside, noscript, iframe, form, svg"

// Candidate main containers, most specific first.
var contentSelectors = []string{
	"article",
	"main",
	"[role='main']",
	".post-content",
	".entry-content",
	".article-content",
	".content",
	"#content",
}

// minReadableWords is the smallest readability result accepted before
// falling back to container heuristics.
const minReadableWords = 50

func normalizeText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// stripNoise removes boilerplate elements in place.
func stripNoise(doc *goquery.Document) {
	doc.Find(noiseTags).Remove()
	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "html", "body", "article", "main":
			return
		}
		// a wrapper holding most of the copy is never boilerplate
		if s.Find("p").Length() >= 5 {
			return
		}
		if noiseClass.MatchString(s.AttrOr("class", "")) || noiseClass.MatchString(s.AttrOr("id", "")) {
			s.Remove()
		}
	})
}

// outline returns h1-h3 in order plus the H2/H3 grouping. Headings inside
// navigation, footers and sidebars are skipped.
func outline(doc *goquery.Document) ([]Heading, []Section) {
	var headings []Heading
	var sections []Section

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("nav, footer, aside").Length() > 0 {
			return
		}
		text := normalizeText(s.Text())
		if text == "" {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		headings = append(headings, Heading{Level: level, Text: text})

		switch level {
		case 2:
			sections = append(sections, Section{Heading: text})
		case 3:
			if n := len(sections); n > 0 {
				sections[n-1].Subheadings = append(sections[n-1].Subheadings, text)
			}
		}
	})
	return headings, sections
}

func paragraphs(doc *goquery.Document) []string {
	var out []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := normalizeText(s.Text()); text != "" {
			out = append(out, text)
		}
		return len(out) < maxParagraphs
	})
	return out
}

// mainText isolates the article body. go-readability is tried first; when it
// fails or finds too little, the best matching container of the already
// stripped document is used.
func (a *Analyzer) mainText(pageURL string, html []byte, stripped *goquery.Document) string {
	if text := readableText(pageURL, html); len(strings.Fields(text)) >= minReadableWords {
		return text
	}
	a.logger.Debug("readability fallback", zap.String("url", pageURL))

	for _, sel := range contentSelectors {
		node := stripped.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := blockText(node); len(strings.Fields(text)) >= minReadableWords {
			return text
		}
	}
	return blockText(stripped.Find("body"))
}

func readableText(pageURL string, html []byte) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(html), parsedURL)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	return blockText(doc.Selection)
}

// blockText joins block level text with newlines so adjacent headings and
// paragraphs do not run together into one token.
func blockText(s *goquery.Selection) string {
	var parts []string
	s.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre").Each(func(_ int, b *goquery.Selection) {
		// nested blocks are collected through their own match
		if b.Find("p, li").Length() > 0 && goquery.NodeName(b) != "p" {
			return
		}
		if text := normalizeText(b.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return normalizeText(s.Text())
	}
	return strings.Join(parts, "\n")
}

// schemaTypes lists JSON-LD "@type" values, nested ones included, followed
// by microdata itemtypes. Script bodies that are not valid JSON are scanned
// with a regex instead.
func schemaTypes(doc *goquery.Document) []string {
	var types []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		body := s.Text()
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			for _, m := range jsonLDType.FindAllStringSubmatch(body, -1) {
				types = append(types, m[1])
			}
			return
		}
		types = appendLDTypes(types, v)
	})
	doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		if m := microdataType.FindStringSubmatch(s.AttrOr("itemtype", "")); m != nil {
			types = append(types, m[1])
		}
	})
	return types
}

// appendLDTypes walks a decoded JSON-LD value. Object keys are visited in
// sorted order so the result is stable.
func appendLDTypes(types []string, v any) []string {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			types = appendLDTypes(types, item)
		}
	case map[string]any:
		switch t := node["@type"].(type) {
		case string:
			types = append(types, t)
		case []any:
			for _, item := range t {
				if name, ok := item.(string); ok {
					types = append(types, name)
				}
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			if k != "@type" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			types = appendLDTypes(types, node[k])
		}
	}
	return types
}
