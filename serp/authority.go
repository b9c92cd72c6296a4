package serp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/retry"
)

// AuthorityProvider returns backlink authority for a bare domain.
type AuthorityProvider interface {
	Authority(ctx context.Context, domain string) (Authority, error)
}

// SERanking is an AuthorityProvider backed by the SE Ranking backlinks API.
type SERanking struct {
	apiKey  string
	baseURL string
	client  *http.Client
	policy  retry.Policy
	logger  *zap.Logger
}

// NewSERanking creates the provider. baseURL defaults to the public v1 backlinks API.
func NewSERanking(apiKey, baseURL string, logger *zap.Logger) *SERanking {
	if baseURL == "" {
		baseURL = "https://api.seranking.com/v1/backlinks"
	}
	return &SERanking{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		policy:  retry.ProviderPolicy(),
		logger:  logger.Named("seranking"),
	}
}

// Authority implements AuthorityProvider. The result is Known only when
// both domain trust and referring domains were returned.
func (s *SERanking) Authority(ctx context.Context, domain string) (Authority, error) {
	if s.apiKey == "" {
		return Authority{}, ErrNotConfigured
	}
	if domain == "" {
		return Authority{}, fmt.Errorf("empty domain")
	}

	dt, err := s.domainTrust(ctx, domain)
	if err != nil {
		return Authority{}, err
	}
	refs, err := s.referringDomains(ctx, domain)
	if err != nil {
		return Authority{}, err
	}
	return Authority{DT: dt, RefDomains: refs, Known: true}, nil
}

func (s *SERanking) domainTrust(ctx context.Context, domain string) (float64, error) {
	params := url.Values{"apikey": {s.apiKey}, "target": {domain}, "output": {"json"}}
	type response struct {
		Pages []struct {
			DomainInlinkRank *float64 `json:"domain_inlink_rank"`
		} `json:"pages"`
	}
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (response, error) {
		return getJSON[response](ctx, s.client, s.baseURL+"/authority/domain?"+params.Encode())
	})
	if err != nil {
		return 0, s.fail("domain trust", domain, err)
	}
	if len(resp.Pages) == 0 || resp.Pages[0].DomainInlinkRank == nil {
		return 0, fmt.Errorf("%w: no domain trust for %s", ErrProviderUnavailable, domain)
	}
	return *resp.Pages[0].DomainInlinkRank, nil
}

func (s *SERanking) referringDomains(ctx context.Context, domain string) (float64, error) {
	params := url.Values{"apikey": {s.apiKey}, "target": {domain}, "mode": {"domain"}, "output": {"json"}}
	type response struct {
		Metrics []struct {
			RefDomains *float64 `json:"refdomains"`
		} `json:"metrics"`
	}
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (response, error) {
		return getJSON[response](ctx, s.client, s.baseURL+"/refdomains/count?"+params.Encode())
	})
	if err != nil {
		return 0, s.fail("referring domains", domain, err)
	}
	if len(resp.Metrics) == 0 || resp.Metrics[0].RefDomains == nil {
		return 0, fmt.Errorf("%w: no referring domains for %s", ErrProviderUnavailable, domain)
	}
	return *resp.Metrics[0].RefDomains, nil
}

func (s *SERanking) fail(what, domain string, err error) error {
	msg := logging.SanitizeError(err)
	s.logger.Warn("authority lookup failed", zap.String("metric", what), zap.String("domain", domain), zap.String("error", msg))
	return fmt.Errorf("%w: %s for %s: %s", ErrProviderUnavailable, what, domain, msg)
}
