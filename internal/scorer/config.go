// Package scorer turns per-question analyses into a single visibility score.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Config holds the scoring constants. The defaults are product-tuned and
// reproduced exactly; changing any of them changes score semantics for
// every stored run, so overrides go through ValidateConfig first.
type Config struct {
	// DifficultyWeights maps question type to how hard an organic mention
	// is to earn for that question style.
	DifficultyWeights map[model.QuestionType]float64

	// Position and sentiment multipliers on a detected mention.
	PositionMultipliers  map[model.MentionPosition]float64
	SentimentMultipliers map[model.Sentiment]float64

	// Competitive-landscape bonus by distinct competitor count.
	MicroBonus float64 // count <= MicroMax
	NicheBonus float64 // count <= NicheMax
	BroadBonus float64 // count > NicheMax
	MicroMax   int
	NicheMax   int

	// Share-of-voice bonus multipliers.
	SoVHighThreshold float64
	SoVHighBonus     float64
	SoVMidThreshold  float64
	SoVMidBonus      float64

	// Citation bucket weights for the citation quality score.
	CitationWeights map[model.CitationBucket]float64

	// Tough-curve shape.
	CitationScoreWeight float64 // citation quality contribution to base
	ScoreFloor          float64 // applied when any weighted mention exists
	ScoreCap            float64
}

// DefaultConfig returns the production scoring constants.
func DefaultConfig() Config {
	return Config{
		DifficultyWeights: map[model.QuestionType]float64{
			model.QuestionTypeDirect:         0.2,
			model.QuestionTypeRecommendation: 1.0,
			model.QuestionTypeComparison:     1.2,
			model.QuestionTypeIndirect:       1.5,
			model.QuestionTypeExplanatory:    2.0,
		},
		PositionMultipliers: map[model.MentionPosition]float64{
			model.PositionPrimary:   1.0,
			model.PositionSecondary: 0.7,
			model.PositionPassing:   0.3,
			model.PositionNone:      0,
		},
		SentimentMultipliers: map[model.Sentiment]float64{
			model.SentimentVeryPositive: 1.2,
			model.SentimentPositive:     1.0,
			model.SentimentNeutral:      0.9,
			model.SentimentNegative:     0.8,
			model.SentimentVeryNegative: 0.5,
		},
		MicroBonus: 0.8,
		NicheBonus: 1.0,
		BroadBonus: 1.3,
		MicroMax:   3,
		NicheMax:   10,

		SoVHighThreshold: 0.6,
		SoVHighBonus:     1.3,
		SoVMidThreshold:  0.4,
		SoVMidBonus:      1.15,

		CitationWeights: map[model.CitationBucket]float64{
			model.BucketOwned:      1.0,
			model.BucketOperated:   0.7,
			model.BucketEarned:     0.9,
			model.BucketCompetitor: -0.2,
		},

		CitationScoreWeight: 20,
		ScoreFloor:          5,
		ScoreCap:            95,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	for _, qt := range []model.QuestionType{
		model.QuestionTypeDirect, model.QuestionTypeRecommendation,
		model.QuestionTypeComparison, model.QuestionTypeIndirect,
		model.QuestionTypeExplanatory,
	} {
		w, ok := c.DifficultyWeights[qt]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing difficulty weight for %q", qt))
		} else if w <= 0 {
			errs = append(errs, fmt.Sprintf("difficulty weight for %q must be positive, got %g", qt, w))
		}
	}

	for _, pos := range []model.MentionPosition{
		model.PositionPrimary, model.PositionSecondary, model.PositionPassing,
	} {
		if _, ok := c.PositionMultipliers[pos]; !ok {
			errs = append(errs, fmt.Sprintf("missing position multiplier for %q", pos))
		}
	}

	for _, s := range []model.Sentiment{
		model.SentimentVeryPositive, model.SentimentPositive, model.SentimentNeutral,
		model.SentimentNegative, model.SentimentVeryNegative,
	} {
		if _, ok := c.SentimentMultipliers[s]; !ok {
			errs = append(errs, fmt.Sprintf("missing sentiment multiplier for %q", s))
		}
	}

	for _, b := range []model.CitationBucket{
		model.BucketOwned, model.BucketOperated, model.BucketEarned, model.BucketCompetitor,
	} {
		if _, ok := c.CitationWeights[b]; !ok {
			errs = append(errs, fmt.Sprintf("missing citation weight for %q", b))
		}
	}

	if c.MicroMax <= 0 || c.NicheMax <= c.MicroMax {
		errs = append(errs, fmt.Sprintf("competitor tiers must satisfy 0 < micro(%d) < niche(%d)", c.MicroMax, c.NicheMax))
	}
	if c.SoVMidThreshold >= c.SoVHighThreshold {
		errs = append(errs, fmt.Sprintf("share-of-voice thresholds must satisfy mid(%g) < high(%g)", c.SoVMidThreshold, c.SoVHighThreshold))
	}
	if c.ScoreFloor < 0 || c.ScoreCap <= c.ScoreFloor || c.ScoreCap > 100 {
		errs = append(errs, fmt.Sprintf("score bounds must satisfy 0 <= floor(%g) < cap(%g) <= 100", c.ScoreFloor, c.ScoreCap))
	}

	if len(errs) > 0 {
		return eris.New("scorer: invalid config: " + strings.Join(errs, "; "))
	}
	return nil
}
