// Package classifier buckets citation URLs by whose interest they serve.
// Classification is pure and deterministic: the same URL and company identity
// always produce the same Citation, with no network access.
package classifier

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Influence constants per bucket. Earned influence varies by source
// authority; the rest are fixed.
const (
	influenceOwned         = 0.95
	influenceOperated      = 0.85
	influenceHighAuthority = 0.85
	influencePlatform      = 0.75
	influenceEarned        = 0.70
	influenceCompetitor    = 0.30
)

// Identity is the company identity a citation is classified against.
// CompetitorDomains may carry domains surfaced earlier in the run.
type Identity struct {
	Name              string
	Domain            string
	OperatedDomains   []string
	CompetitorDomains []string
}

// IdentityFor builds an Identity from a company, normalizing all domains.
func IdentityFor(c model.Company) Identity {
	id := Identity{
		Name:   c.Name,
		Domain: normalizeHost(c.Domain),
	}
	for _, d := range c.OperatedDomains {
		if n := normalizeHost(d); n != "" {
			id.OperatedDomains = append(id.OperatedDomains, n)
		}
	}
	for _, d := range c.OwnedDomains {
		// Additional owned domains are treated as operated properties so a
		// citation on any of them still counts in the company's favor.
		if n := normalizeHost(d); n != "" && n != id.Domain {
			id.OperatedDomains = append(id.OperatedDomains, n)
		}
	}
	return id
}

// Classify buckets a single citation URL. A malformed URL never aborts the
// caller: it yields a conservative earned-bucket result.
func Classify(rawURL string, id Identity) model.Citation {
	host, path, err := splitURL(rawURL)
	if err != nil || host == "" {
		zap.L().Debug("classifier: malformed citation url",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return model.Citation{
			URL:            rawURL,
			ResolvedDomain: host,
			Bucket:         model.BucketEarned,
			InfluenceScore: influenceEarned,
			RelevanceScore: 0.5,
		}
	}

	c := model.Citation{
		URL:            rawURL,
		ResolvedDomain: host,
		RelevanceScore: relevance(rawURL, id),
	}

	registered := registeredDomain(host)
	lowerURL := foldTo(rawURL)

	switch {
	case host == id.Domain || isSubdomain(host, id.Domain):
		c.Bucket = model.BucketOwned
		c.InfluenceScore = influenceOwned

	case matchesAny(host, id.OperatedDomains):
		c.Bucket = model.BucketOperated
		c.InfluenceScore = influenceOperated

	case socialPlatformDomains[registered] && containsCompanyToken(path, id):
		c.Bucket = model.BucketOperated
		c.InfluenceScore = influenceOperated

	case highAuthorityDomains[registered]:
		c.Bucket = model.BucketEarned
		c.InfluenceScore = influenceHighAuthority

	case socialPlatformDomains[registered]:
		c.Bucket = model.BucketEarned
		c.InfluenceScore = influencePlatform

	case isCompetitorURL(host, lowerURL, id):
		c.Bucket = model.BucketCompetitor
		c.InfluenceScore = influenceCompetitor

	default:
		c.Bucket = model.BucketEarned
		c.InfluenceScore = influenceEarned
	}

	return c
}

// ClassifyAll classifies every URL in order.
func ClassifyAll(urls []string, id Identity) []model.Citation {
	out := make([]model.Citation, len(urls))
	for i, u := range urls {
		out[i] = Classify(u, id)
	}
	return out
}

// relevance scores how directly a URL concerns the company: base 0.5, +0.3
// for the company name (whitespace stripped), +0.2 for the brand token (first
// label of the company domain), +0.1 per business-intent keyword, capped at 1.
func relevance(rawURL string, id Identity) float64 {
	score := 0.5
	lower := foldTo(rawURL)

	nameToken := strings.ReplaceAll(foldTo(id.Name), " ", "")
	if nameToken != "" && strings.Contains(lower, nameToken) {
		score += 0.3
	}

	if brand := brandToken(id.Domain); brand != "" && strings.Contains(lower, brand) {
		score += 0.2
	}

	for _, kw := range intentKeywords {
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// containsCompanyToken reports whether a URL path identifies the company by
// name or brand token.
func containsCompanyToken(path string, id Identity) bool {
	lower := foldTo(path)
	nameToken := strings.ReplaceAll(foldTo(id.Name), " ", "")
	if nameToken != "" && strings.Contains(lower, nameToken) {
		return true
	}
	brand := brandToken(id.Domain)
	return brand != "" && strings.Contains(lower, brand)
}

func isCompetitorURL(host, lowerURL string, id Identity) bool {
	if matchesAny(host, id.CompetitorDomains) {
		return true
	}
	for _, p := range competitorPathPatterns {
		if strings.Contains(lowerURL, p) {
			return true
		}
	}
	return false
}

// splitURL extracts the normalized host and path. Scheme-less inputs like
// "example.com/page" are accepted.
func splitURL(rawURL string) (host, path string, err error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", "", errEmptyURL
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", err
	}
	return normalizeHost(u.Hostname()), u.Path, nil
}

var errEmptyURL = eris.New("classifier: empty url")

// normalizeHost lowercases a hostname and strips any scheme and leading www.
func normalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	if idx := strings.IndexAny(h, "/?#"); idx >= 0 {
		h = h[:idx]
	}
	h = strings.TrimPrefix(h, "www.")
	return strings.TrimSuffix(h, ".")
}

// registeredDomain reduces a hostname to its last two labels, enough for the
// static allowlists (blog.medium.com → medium.com).
func registeredDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func isSubdomain(host, parent string) bool {
	return parent != "" && strings.HasSuffix(host, "."+parent)
}

func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || isSubdomain(host, d) {
			return true
		}
	}
	return false
}

// brandToken returns the first label of the company domain ("acme" for
// "acme.io").
func brandToken(domain string) string {
	if domain == "" {
		return ""
	}
	if idx := strings.Index(domain, "."); idx > 0 {
		return domain[:idx]
	}
	return domain
}

// foldTo case-folds a string for Unicode-safe substring matching.
func foldTo(s string) string {
	return cases.Fold().String(s)
}
