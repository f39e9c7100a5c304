package classifier

// socialPlatformDomains are social, business-directory, and developer
// platforms where a company-identifying token in the URL path indicates a
// property the company itself operates (profile, listing, org page).
var socialPlatformDomains = map[string]bool{
	"linkedin.com":      true,
	"twitter.com":       true,
	"x.com":             true,
	"facebook.com":      true,
	"instagram.com":     true,
	"youtube.com":       true,
	"github.com":        true,
	"gitlab.com":        true,
	"medium.com":        true,
	"crunchbase.com":    true,
	"glassdoor.com":     true,
	"indeed.com":        true,
	"yelp.com":          true,
	"bbb.org":           true,
	"trustpilot.com":    true,
	"g2.com":            true,
	"capterra.com":      true,
	"producthunt.com":   true,
	"angellist.com":     true,
	"wellfound.com":     true,
	"stackoverflow.com": true,
	"reddit.com":        true,
}

// highAuthorityDomains are independent publications whose coverage counts as
// strong earned media.
var highAuthorityDomains = map[string]bool{
	"techcrunch.com":      true,
	"forbes.com":          true,
	"bloomberg.com":       true,
	"reuters.com":         true,
	"wsj.com":             true,
	"nytimes.com":         true,
	"businessinsider.com": true,
	"cnbc.com":            true,
	"theverge.com":        true,
	"wired.com":           true,
	"venturebeat.com":     true,
	"fastcompany.com":     true,
	"inc.com":             true,
	"entrepreneur.com":    true,
	"wikipedia.org":       true,
	"gartner.com":         true,
	"forrester.com":       true,
}

// intentKeywords are business-intent tokens that raise a citation's
// relevance score.
var intentKeywords = []string{
	"review",
	"pricing",
	"alternative",
	"comparison",
	"features",
}

// competitorPathPatterns mark URLs framing the company against rivals.
var competitorPathPatterns = []string{
	"vs-",
	"-vs-",
	"/vs/",
	"versus",
	"alternative-to",
	"alternatives-to",
	"compare/",
	"competitors",
}
