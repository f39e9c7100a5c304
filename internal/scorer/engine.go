package scorer

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Engine computes a VisibilityScore from per-question analyses. Scoring is
// pure and deterministic: identical input yields an identical score, with
// no locking needed for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine builds an Engine, falling back to defaults if cfg is invalid.
func NewEngine(cfg Config) *Engine {
	if err := ValidateConfig(cfg); err != nil {
		zap.L().Warn("invalid scoring config, using defaults", zap.Error(err))
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Score computes the visibility score for one completed run. Empty or
// all-zero input returns a fully zeroed VisibilityScore.
func (e *Engine) Score(analyses []model.QuestionAnalysis) model.VisibilityScore {
	if len(analyses) == 0 {
		return model.VisibilityScore{}
	}
	cfg := e.cfg

	var (
		weightSum   float64
		contribSum  float64
		mentioned   int
		qualities   []float64 // per-mentioned-question position x sentiment
		breakdown   model.CitationBreakdown
		citationSum float64
		citations   int
	)

	competitorNames := make(map[string]struct{})
	competitorMentions := 0

	for _, qa := range analyses {
		weight := cfg.DifficultyWeights[qa.Type]
		weightSum += weight

		if qa.Mention.Detected {
			mentioned++
			quality := cfg.PositionMultipliers[qa.Mention.Position] * cfg.SentimentMultipliers[qa.Mention.Sentiment]
			qualities = append(qualities, quality)
			contribSum += weight * quality
		}

		for _, c := range qa.Competitors {
			competitorNames[strings.ToLower(c.Name)] = struct{}{}
			competitorMentions++
		}

		for _, cit := range qa.Citations {
			breakdown.Add(cit.Bucket)
			citationSum += cfg.CitationWeights[cit.Bucket]
			citations++
		}
	}

	var weightedScore float64
	if weightSum > 0 {
		weightedScore = contribSum / weightSum
	}

	bonus := e.competitiveBonus(len(competitorNames), mentioned, competitorMentions)

	var citationQuality float64
	if citations > 0 {
		citationQuality = math.Max(0, citationSum/float64(citations))
	}

	base := weightedScore*100*bonus + citationQuality*cfg.CitationScoreWeight
	overall := e.toughCurve(base, weightedScore)

	return model.VisibilityScore{
		Overall:                overall,
		MentionRate:            float64(mentioned) / float64(len(analyses)),
		MentionQuality:         math.Min(1, mean(qualities)),
		SourceInfluence:        math.Min(1, citationQuality),
		CompetitivePositioning: shareOfVoice(mentioned, competitorMentions),
		ResponseConsistency:    consistency(qualities),
		CitationBreakdown:      breakdown,
	}
}

// competitiveBonus maps the competitor landscape to a score multiplier:
// tiny fields are discounted, crowded fields rewarded, and a dominant
// share of voice compounds the reward.
func (e *Engine) competitiveBonus(distinctCompetitors, companyMentions, competitorMentions int) float64 {
	cfg := e.cfg

	var bonus float64
	switch {
	case distinctCompetitors <= cfg.MicroMax:
		bonus = cfg.MicroBonus
	case distinctCompetitors <= cfg.NicheMax:
		bonus = cfg.NicheBonus
	default:
		bonus = cfg.BroadBonus
	}

	sov := shareOfVoice(companyMentions, competitorMentions)
	switch {
	case sov > cfg.SoVHighThreshold:
		bonus *= cfg.SoVHighBonus
	case sov > cfg.SoVMidThreshold:
		bonus *= cfg.SoVMidBonus
	}
	return bonus
}

// toughCurve applies the cubic smoothstep that makes very high scores rare,
// then the floor and cap.
func (e *Engine) toughCurve(base, weightedScore float64) float64 {
	x := math.Min(1, base/100)
	curved := 100 * x * x * (3 - 2*x)

	if weightedScore > 0 && curved < e.cfg.ScoreFloor {
		curved = e.cfg.ScoreFloor
	}
	if curved > e.cfg.ScoreCap {
		curved = e.cfg.ScoreCap
	}
	return math.Round(curved*10) / 10
}

func shareOfVoice(companyMentions, competitorMentions int) float64 {
	total := companyMentions + competitorMentions
	if total == 0 {
		return 0
	}
	return float64(companyMentions) / float64(total)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// consistency is max(0, 1 - 2*stdev) over per-question quality scores.
// A single data point has no spread and scores a full 1.
func consistency(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if len(xs) == 1 {
		return 1
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		d := x - m
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Max(0, 1-2*math.Sqrt(variance))
}
