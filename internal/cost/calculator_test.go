package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		AnswerEngine: AnswerEngineRate{PerQuery: 0.005},
	}
}

func TestClaude(t *testing.T) {
	c := NewCalculator(testRates())

	t.Run("input and output", func(t *testing.T) {
		got := c.Claude("haiku", anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000})
		assert.InDelta(t, 0.80+2.00, got, 1e-9)
	})

	t.Run("cache write and read", func(t *testing.T) {
		got := c.Claude("haiku", anthropic.TokenUsage{
			CacheCreationInputTokens: 1_000_000,
			CacheReadInputTokens:     1_000_000,
		})
		assert.InDelta(t, 0.80*1.25+0.80*0.1, got, 1e-9)
	})

	t.Run("unknown model costs zero", func(t *testing.T) {
		got := c.Claude("nonexistent", anthropic.TokenUsage{InputTokens: 1_000_000})
		assert.Zero(t, got)
	})
}

func TestQueries(t *testing.T) {
	c := NewCalculator(testRates())
	assert.InDelta(t, 0.05, c.Queries(10), 1e-9)
	assert.Zero(t, c.Queries(0))
}

func TestRunTotal(t *testing.T) {
	c := NewCalculator(testRates())

	total := c.RunTotal("run-1", "haiku", 10, anthropic.TokenUsage{InputTokens: 1_000_000})
	assert.InDelta(t, 0.05+0.80, total, 1e-9)
}

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	assert.NotEmpty(t, rates.Anthropic)
	assert.Greater(t, rates.AnswerEngine.PerQuery, 0.0)
}
