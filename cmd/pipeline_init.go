package main

import (
	"context"
	"time"

	"github.com/sells-group/visibility-cli/internal/analysis"
	"github.com/sells-group/visibility-cli/internal/assessment"
	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/query"
	"github.com/sells-group/visibility-cli/internal/quota"
	"github.com/sells-group/visibility-cli/internal/resilience"
	"github.com/sells-group/visibility-cli/internal/scorer"
	"github.com/sells-group/visibility-cli/internal/store"
	"github.com/sells-group/visibility-cli/pkg/answerengine"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

// pipelineEnv bundles the wired assessment pipeline for a command.
type pipelineEnv struct {
	Store  store.Store
	Engine *assessment.Engine
}

func (env *pipelineEnv) Close() {
	env.Store.Close() //nolint:errcheck
}

func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver != "postgres" && dsn == "" {
		dsn = "visibility.db"
	}
	return store.Open(ctx, cfg.Store.Driver, dsn)
}

// initPipeline wires the full assessment stack from config.
func initPipeline(ctx context.Context, progress assessment.ProgressFunc) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	guard := quota.New(cfg.AnswerEngine.QuotaCeiling,
		time.Duration(cfg.AnswerEngine.QuotaWindow)*time.Second)

	engine := answerengine.NewClient(cfg.AnswerEngine.Key,
		answerengine.WithBaseURL(cfg.AnswerEngine.BaseURL),
		answerengine.WithModel(cfg.AnswerEngine.Model))

	querier := query.NewClient(engine, guard,
		query.WithModel(cfg.AnswerEngine.Model),
		query.WithTimeout(time.Duration(cfg.AnswerEngine.TimeoutSecs)*time.Second),
		query.WithRetryConfig(resilience.FromRetryConfig(cfg.AnswerEngine.MaxRetries, 0, 0)),
		query.WithSubBatchSize(cfg.Assessment.SubBatchSize))

	// The adapter's memo cache and usage counters are per-run state, so
	// every run built by this pipeline gets a fresh one over the shared
	// anthropic client.
	ai := anthropic.NewClient(cfg.Anthropic.Key)
	analyzerFactory := func() assessment.Analyzer {
		return analysis.NewAdapter(ai,
			analysis.WithModel(cfg.Anthropic.Model),
			analysis.WithMaxTokens(cfg.Anthropic.MaxTokens))
	}

	opts := []assessment.Option{
		assessment.WithSubBatchSize(cfg.Assessment.SubBatchSize),
		assessment.WithAnalysisModel(cfg.Anthropic.Model),
	}
	if progress != nil {
		opts = append(opts, assessment.WithProgress(progress))
	}

	eng := assessment.NewEngine(st, querier, analyzerFactory,
		scorer.NewEngine(scorer.DefaultConfig()),
		cost.NewCalculator(buildRates()),
		opts...)

	return &pipelineEnv{Store: st, Engine: eng}, nil
}

// buildRates overlays configured pricing on the defaults.
func buildRates() cost.Rates {
	rates := cost.DefaultRates()
	if cfg.Pricing.AnswerEngine.PerQuery > 0 {
		rates.AnswerEngine.PerQuery = cfg.Pricing.AnswerEngine.PerQuery
	}
	for m, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[m] = cost.ModelRate{
			Input: p.Input, Output: p.Output,
			CacheWriteMul: 1.25, CacheReadMul: 0.1,
		}
	}
	return rates
}
