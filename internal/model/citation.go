package model

// CitationBucket classifies whose interest a cited source serves.
type CitationBucket string

const (
	// BucketOwned is the company's own registered domain or a subdomain of it.
	BucketOwned CitationBucket = "owned"
	// BucketOperated is a third-party property the company controls, such as
	// a social profile or directory listing.
	BucketOperated CitationBucket = "operated"
	// BucketEarned is independent third-party coverage.
	BucketEarned CitationBucket = "earned"
	// BucketCompetitor is a source serving a competitor's interest.
	BucketCompetitor CitationBucket = "competitor"
)

// Citation is a classified citation URL from an answer-engine response.
// Exactly one bucket applies and both scores stay in [0,1].
type Citation struct {
	URL            string         `json:"url"`
	ResolvedDomain string         `json:"resolved_domain"`
	Bucket         CitationBucket `json:"bucket"`
	InfluenceScore float64        `json:"influence_score"`
	RelevanceScore float64        `json:"relevance_score"`
}

// CitationBreakdown tallies citations per bucket across a run.
type CitationBreakdown struct {
	Owned      int `json:"owned"`
	Operated   int `json:"operated"`
	Earned     int `json:"earned"`
	Competitor int `json:"competitor"`
}

// Add increments the count for the given bucket.
func (b *CitationBreakdown) Add(bucket CitationBucket) {
	switch bucket {
	case BucketOwned:
		b.Owned++
	case BucketOperated:
		b.Operated++
	case BucketEarned:
		b.Earned++
	case BucketCompetitor:
		b.Competitor++
	}
}

// Total returns the total citation count.
func (b CitationBreakdown) Total() int {
	return b.Owned + b.Operated + b.Earned + b.Competitor
}
