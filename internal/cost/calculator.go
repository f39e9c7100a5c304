package cost

import (
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic    map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	AnswerEngine AnswerEngineRate     `yaml:"answer_engine" mapstructure:"answer_engine"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// AnswerEngineRate holds answer-engine API pricing.
type AnswerEngineRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of accumulated Claude token usage for a model.
// Unknown models cost 0 rather than erroring; pricing gaps must never fail
// a run.
func (c *Calculator) Claude(model string, usage anthropic.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(usage.InputTokens) / 1e6) * rate.Input
	outCost := (float64(usage.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(usage.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(usage.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Queries returns the flat cost of n answer-engine queries.
func (c *Calculator) Queries(n int) float64 {
	return float64(n) * c.rates.AnswerEngine.PerQuery
}

// RunTotal computes and logs the total cost of one assessment run.
func (c *Calculator) RunTotal(runID, model string, queries int, usage anthropic.TokenUsage) float64 {
	queryCost := c.Queries(queries)
	claudeCost := c.Claude(model, usage)
	total := queryCost + claudeCost

	zap.L().Info("run cost",
		zap.String("run_id", runID),
		zap.Int("queries", queries),
		zap.Float64("query_cost_usd", queryCost),
		zap.Float64("analysis_cost_usd", claudeCost),
		zap.Float64("total_usd", total))
	return total
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		AnswerEngine: AnswerEngineRate{PerQuery: 0.005},
	}
}
