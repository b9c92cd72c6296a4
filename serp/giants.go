package serp

import "strings"

// giantDomains are brands whose presence makes a SERP hard to crack
// regardless of content quality.
var giantDomains = []string{
	"google.com", "support.google.com", "developers.google.com",
	"wikipedia.org", "youtube.com", "amazon.com", "linkedin.com",
	"facebook.com", "instagram.com", "hubspot.com", "semrush.com",
	"ahrefs.com", "moz.com", "shopify.com", "mailchimp.com", "salesforce.com",
}

// IsGiantDomain reports whether domain belongs to a giant brand.
func IsGiantDomain(domain string) bool {
	d := strings.ToLower(domain)
	if d == "" {
		return false
	}
	for _, g := range giantDomains {
		if strings.Contains(d, g) {
			return true
		}
	}
	return false
}
