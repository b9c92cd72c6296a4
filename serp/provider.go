package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/retry"
)

// Query is one search request.
type Query struct {
	Keyword  string
	Location string
	Num      int
}

// SearchResult is the provider's organic list plus SERP features, in
// provider rank order.
type SearchResult struct {
	Organic  []OrganicResult
	Features Features
}

// Provider fetches search results for a query.
type Provider interface {
	Search(ctx context.Context, q Query) (*SearchResult, error)
}

// SerpAPI is a Provider backed by serpapi.com.
type SerpAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	policy  retry.Policy
	logger  *zap.Logger
}

// NewSerpAPI creates a SerpAPI provider. baseURL defaults to the public endpoint.
func NewSerpAPI(apiKey, baseURL string, logger *zap.Logger) *SerpAPI {
	if baseURL == "" {
		baseURL = "https://serpapi.com/search"
	}
	return &SerpAPI{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  retry.ProviderPolicy(),
		logger:  logger.Named("serpapi"),
	}
}

// Search implements Provider.
func (s *SerpAPI) Search(ctx context.Context, q Query) (*SearchResult, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("q", q.Keyword)
	params.Set("location", q.Location)
	params.Set("num", strconv.Itoa(q.Num))
	params.Set("google_domain", "google.com")
	params.Set("gl", "us")
	params.Set("hl", "en")
	params.Set("api_key", s.apiKey)
	endpoint := s.baseURL + "?" + params.Encode()

	raw, err := retry.Do(ctx, s.policy, func(ctx context.Context) (map[string]json.RawMessage, error) {
		return getJSON[map[string]json.RawMessage](ctx, s.client, endpoint)
	})
	if err != nil {
		s.logger.Warn("search failed", zap.String("keyword", q.Keyword), zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, logging.SanitizeError(err))
	}

	return parseSearch(raw), nil
}

// getJSON performs a GET and decodes the body. 4xx responses other than
// 429 are permanent.
func getJSON[T any](ctx context.Context, client *http.Client, endpoint string) (T, error) {
	var out T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d from %s", resp.StatusCode, req.URL.Host)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return out, retry.Permanent(err)
		}
		return out, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// section decodes one top-level key leniently; shape mismatches leave v untouched.
func section(raw map[string]json.RawMessage, key string, v any) bool {
	data, ok := raw[key]
	if !ok || len(data) == 0 || string(data) == "null" {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

type serpAPIOrganic struct {
	Position      int             `json:"position"`
	Title         string          `json:"title"`
	Link          string          `json:"link"`
	Snippet       string          `json:"snippet"`
	DisplayedLink string          `json:"displayed_link"`
	RichSnippet   json.RawMessage `json:"rich_snippet"`
	Sitelinks     json.RawMessage `json:"sitelinks"`
}

type serpAPISnippet struct {
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Snippet string          `json:"snippet"`
	Answer  string          `json:"answer"`
	Link    string          `json:"link"`
	List    []string        `json:"list"`
	Table   json.RawMessage `json:"table"`
}

type named struct {
	Name string `json:"name"`
}

func parseSearch(raw map[string]json.RawMessage) *SearchResult {
	res := &SearchResult{}

	var organic []serpAPIOrganic
	section(raw, "organic_results", &organic)
	for _, o := range organic {
		if o.Link == "" {
			continue
		}
		pos := o.Position
		if pos == 0 {
			pos = len(res.Organic) + 1
		}
		rich := 0
		if present(o.RichSnippet) {
			rich++
		}
		if present(o.Sitelinks) {
			rich++
		}
		res.Organic = append(res.Organic, OrganicResult{
			Position:      pos,
			Title:         o.Title,
			URL:           o.Link,
			Snippet:       o.Snippet,
			DisplayedLink: o.DisplayedLink,
			RichFeatures:  rich,
		})
	}

	f := &res.Features

	var paa []struct {
		Question string `json:"question"`
		Snippet  string `json:"snippet"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Source   named  `json:"source"`
	}
	if section(raw, "related_questions", &paa) && len(paa) > 0 {
		f.Present = append(f.Present, FeaturePAA)
		for _, p := range paa {
			if p.Question == "" {
				continue
			}
			f.PeopleAlsoAsk = append(f.PeopleAlsoAsk, PAAItem{
				Question: p.Question, Snippet: p.Snippet, Title: p.Title, Link: p.Link, Source: p.Source.Name,
			})
		}
	}

	var related []struct {
		Query string `json:"query"`
	}
	if section(raw, "related_searches", &related) && len(related) > 0 {
		f.Present = append(f.Present, FeatureRelatedSearches)
		for _, r := range related {
			if r.Query != "" {
				f.RelatedSearches = append(f.RelatedSearches, r.Query)
			}
		}
	}

	var snip serpAPISnippet
	if section(raw, "answer_box", &snip) || section(raw, "featured_snippet", &snip) {
		f.Present = append(f.Present, FeatureSnippet)
		fs := &FeaturedSnippet{
			Type:    snip.Type,
			Title:   snip.Title,
			Snippet: snip.Snippet,
			Link:    snip.Link,
			List:    snip.List,
		}
		if fs.Type == "" {
			fs.Type = "paragraph"
		}
		if fs.Snippet == "" {
			fs.Snippet = snip.Answer
		}
		var table [][]string
		if present(snip.Table) && json.Unmarshal(snip.Table, &table) == nil {
			fs.Table = table
		}
		f.FeaturedSnippet = fs
	}

	var kg struct {
		Title       string  `json:"title"`
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Source      named   `json:"source"`
		PASF        []named `json:"people_also_search_for"`
		Questions   []struct {
			Question string `json:"question"`
		} `json:"questions"`
	}
	if section(raw, "knowledge_graph", &kg) {
		f.Present = append(f.Present, FeatureKnowledgePanel)
		kp := &KnowledgePanel{Title: kg.Title, Type: kg.Type, Description: kg.Description, Source: kg.Source.Name}
		for _, p := range kg.PASF {
			if p.Name != "" {
				kp.PeopleAlsoSearchFor = append(kp.PeopleAlsoSearchFor, p.Name)
			}
		}
		for _, q := range kg.Questions {
			if q.Question != "" {
				kp.Questions = append(kp.Questions, q.Question)
			}
		}
		f.KnowledgePanel = kp
	}

	var ads []json.RawMessage
	if section(raw, "ads", &ads) && len(ads) > 0 {
		f.Present = append(f.Present, FeatureAds)
		f.AdsPresent = true
	}

	var local struct {
		Places []Place `json:"places"`
	}
	if section(raw, "local_results", &local) {
		f.Present = append(f.Present, FeatureLocalPack)
		f.LocalPack = firstN(local.Places, 5)
	}

	var videos []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Platform string `json:"platform"`
		Duration string `json:"duration"`
	}
	if section(raw, "inline_videos", &videos) && len(videos) > 0 {
		f.Present = append(f.Present, FeatureVideo)
		for _, v := range firstN(videos, 5) {
			f.Videos = append(f.Videos, MediaItem{Title: v.Title, Link: v.Link, Source: v.Platform, Extra: v.Duration})
		}
	}

	var images []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	}
	if section(raw, "inline_images", &images) && len(images) > 0 {
		f.Present = append(f.Present, FeatureImages)
		for _, i := range firstN(images, 5) {
			f.Images = append(f.Images, MediaItem{Title: i.Title, Link: i.Link})
		}
	}

	type newsItem struct {
		Title  string          `json:"title"`
		Link   string          `json:"link"`
		Source json.RawMessage `json:"source"`
		Date   string          `json:"date"`
	}
	var news []newsItem
	if !(section(raw, "news_results", &news) && len(news) > 0) {
		section(raw, "top_stories", &news)
	}
	if len(news) > 0 {
		f.Present = append(f.Present, FeatureNews)
		for _, n := range firstN(news, 5) {
			f.News = append(f.News, MediaItem{Title: n.Title, Link: n.Link, Source: sourceName(n.Source), Extra: n.Date})
		}
	}

	var shopping []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Price  string `json:"price"`
		Source string `json:"source"`
	}
	if section(raw, "shopping_results", &shopping) && len(shopping) > 0 {
		f.Present = append(f.Present, FeatureShopping)
		for _, s := range firstN(shopping, 5) {
			f.Shopping = append(f.Shopping, MediaItem{Title: s.Title, Link: s.Link, Source: s.Source, Extra: s.Price})
		}
	}

	return res
}

func present(raw json.RawMessage) bool {
	s := string(raw)
	return len(raw) > 0 && s != "null" && s != "{}" && s != "[]"
}

// sourceName accepts either "source": "CNN" or "source": {"name": "CNN"}.
func sourceName(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n named
	if json.Unmarshal(raw, &n) == nil {
		return n.Name
	}
	return ""
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
