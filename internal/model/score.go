package model

// VisibilityScore is the immutable output of one completed assessment run.
// Overall is bounded to [0,95] with a floor of 5 whenever any weighted
// mention exists; the sub-metrics are all in [0,1].
type VisibilityScore struct {
	Overall                float64           `json:"overall"`
	MentionRate            float64           `json:"mention_rate"`
	MentionQuality         float64           `json:"mention_quality"`
	SourceInfluence        float64           `json:"source_influence"`
	CompetitivePositioning float64           `json:"competitive_positioning"`
	ResponseConsistency    float64           `json:"response_consistency"`
	CitationBreakdown      CitationBreakdown `json:"citation_breakdown"`
}
