package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

func acmeIdentity() Identity {
	return IdentityFor(model.Company{
		Name:            "Acme Analytics",
		Domain:          "acme.com",
		OperatedDomains: []string{"docs.acme.io"},
	})
}

func TestClassify_Buckets(t *testing.T) {
	id := acmeIdentity()
	id.CompetitorDomains = []string{"rivalsoft.com"}

	tests := []struct {
		name          string
		url           string
		wantBucket    model.CitationBucket
		wantInfluence float64
	}{
		{"own domain", "https://acme.com/product", model.BucketOwned, 0.95},
		{"own domain www-stripped", "https://WWW.ACME.COM", model.BucketOwned, 0.95},
		{"own subdomain", "https://blog.acme.com/post", model.BucketOwned, 0.95},
		{"operated allowlist", "https://docs.acme.io/start", model.BucketOperated, 0.85},
		{"platform with brand token", "https://linkedin.com/company/acme", model.BucketOperated, 0.85},
		{"platform with full name", "https://www.crunchbase.com/organization/acmeanalytics", model.BucketOperated, 0.85},
		{"high authority", "https://techcrunch.com/2026/01/some-article", model.BucketEarned, 0.85},
		{"platform without token", "https://reddit.com/r/saas/comments/xyz", model.BucketEarned, 0.75},
		{"competitor domain", "https://rivalsoft.com/landing", model.BucketCompetitor, 0.30},
		{"versus page", "https://blog.example.net/rival-vs-other", model.BucketCompetitor, 0.30},
		{"alternative-to page", "https://listicle.io/alternative-to-something", model.BucketCompetitor, 0.30},
		{"unknown domain", "https://random-blog.net/article", model.BucketEarned, 0.70},
		{"scheme-less", "example.org/page", model.BucketEarned, 0.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.url, id)
			assert.Equal(t, tt.wantBucket, c.Bucket)
			assert.InDelta(t, tt.wantInfluence, c.InfluenceScore, 0.001)
		})
	}
}

func TestClassify_IsPureAndIdempotent(t *testing.T) {
	id := acmeIdentity()
	first := Classify("https://linkedin.com/company/acme", id)
	second := Classify("https://linkedin.com/company/acme", id)
	assert.Equal(t, first, second)
}

func TestClassify_ScoresAlwaysInRange(t *testing.T) {
	id := acmeIdentity()
	urls := []string{
		"https://acme.com",
		"https://acme.com/acmeanalytics-review-pricing-comparison-features-alternative",
		"https://g2.com/products/acme/reviews",
		"not a url at all %%%",
		"",
		"ftp://weird.example/path",
	}
	for _, u := range urls {
		c := Classify(u, id)
		assert.Contains(t, []model.CitationBucket{
			model.BucketOwned, model.BucketOperated, model.BucketEarned, model.BucketCompetitor,
		}, c.Bucket, u)
		assert.GreaterOrEqual(t, c.InfluenceScore, 0.0, u)
		assert.LessOrEqual(t, c.InfluenceScore, 1.0, u)
		assert.GreaterOrEqual(t, c.RelevanceScore, 0.0, u)
		assert.LessOrEqual(t, c.RelevanceScore, 1.0, u)
	}
}

func TestClassify_MalformedURLDefaultsToEarned(t *testing.T) {
	id := acmeIdentity()

	c := Classify("://broken", id)
	assert.Equal(t, model.BucketEarned, c.Bucket)
	assert.InDelta(t, 0.70, c.InfluenceScore, 0.001)

	c = Classify("", id)
	assert.Equal(t, model.BucketEarned, c.Bucket)
}

func TestRelevance(t *testing.T) {
	id := acmeIdentity()

	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"base", "https://random.net/article", 0.5},
		{"brand token only", "https://news.net/acme-raises-round", 0.7},
		{"name no whitespace", "https://news.net/acmeanalytics-profile", 1.0}, // name 0.3 + brand 0.2
		{"one intent keyword", "https://blog.net/pricing-guide", 0.6},
		{"caps at one", "https://g2.com/acmeanalytics-review-pricing-comparison-features", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, relevance(tt.url, id), 0.001)
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WWW.Example.COM", "example.com"},
		{"https://www.example.com", "example.com"},
		{"example.com/path", "example.com"},
		{"  acme.io. ", "acme.io"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHost(tt.in), tt.in)
	}
}

func TestRegisteredDomain(t *testing.T) {
	assert.Equal(t, "medium.com", registeredDomain("blog.medium.com"))
	assert.Equal(t, "acme.com", registeredDomain("acme.com"))
	assert.Equal(t, "linkedin.com", registeredDomain("de.linkedin.com"))
}

func TestIdentityFor_NormalizesDomains(t *testing.T) {
	id := IdentityFor(model.Company{
		Name:         "Acme",
		Domain:       "WWW.Acme.COM",
		OwnedDomains: []string{"acme.com", "acme.dev"},
	})
	require.Equal(t, "acme.com", id.Domain)
	// The primary domain is not duplicated into the operated list.
	assert.Equal(t, []string{"acme.dev"}, id.OperatedDomains)
}

func TestClassifyAll_PreservesOrder(t *testing.T) {
	id := acmeIdentity()
	out := ClassifyAll([]string{"https://acme.com", "https://techcrunch.com/a"}, id)
	require.Len(t, out, 2)
	assert.Equal(t, model.BucketOwned, out[0].Bucket)
	assert.Equal(t, model.BucketEarned, out[1].Bucket)
}
