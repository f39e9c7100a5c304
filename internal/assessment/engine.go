// Package assessment orchestrates a full visibility assessment run:
// querying the answer engine, analyzing answers, scoring, and persistence.
package assessment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/visibility-cli/internal/analysis"
	"github.com/sells-group/visibility-cli/internal/classifier"
	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/query"
	"github.com/sells-group/visibility-cli/internal/resilience"
	"github.com/sells-group/visibility-cli/internal/scorer"
	"github.com/sells-group/visibility-cli/internal/store"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

// ErrPipelineFailed marks a whole-run abort: an invalid request or a query
// stage that produced nothing usable. Everything else degrades per
// question and the run still completes.
var ErrPipelineFailed = eris.New("assessment: pipeline failed")

// Querier issues the question battery against the answer engine.
type Querier interface {
	BatchQuery(ctx context.Context, questions []model.Question) ([]model.AnswerRecord, []query.Failure)
}

// Analyzer produces a validated analysis per answered question.
type Analyzer interface {
	Analyze(ctx context.Context, company model.Company, question model.Question, record model.AnswerRecord) model.QuestionAnalysis
	Usage() anthropic.TokenUsage
}

// AnalyzerFactory builds the analyzer for one run. Analyzer state (memo
// cache, usage counters) is scoped to a single assessment, so each Run
// gets a fresh instance; a stale cache entry from an earlier run must
// never answer for a new one.
type AnalyzerFactory func() Analyzer

// ProgressFunc consumes progress events. No acknowledgement is expected
// and it must not block.
type ProgressFunc func(model.Progress)

// Engine runs assessments end to end.
type Engine struct {
	store       store.Store
	querier     Querier
	newAnalyzer AnalyzerFactory
	scorer      *scorer.Engine
	costs       *cost.Calculator

	analysisModel string
	subBatchSize  int
	progress      ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress sets the progress event consumer.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.progress = fn
		}
	}
}

// WithSubBatchSize bounds analysis concurrency.
func WithSubBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.subBatchSize = n
		}
	}
}

// WithAnalysisModel sets the model name used for cost attribution.
func WithAnalysisModel(m string) Option {
	return func(e *Engine) {
		if m != "" {
			e.analysisModel = m
		}
	}
}

// NewEngine builds an assessment Engine.
func NewEngine(st store.Store, querier Querier, newAnalyzer AnalyzerFactory, sc *scorer.Engine, costs *cost.Calculator, opts ...Option) *Engine {
	e := &Engine{
		store:         st,
		querier:       querier,
		newAnalyzer:   newAnalyzer,
		scorer:        sc,
		costs:         costs,
		analysisModel: "claude-haiku-4-5-20251001",
		subBatchSize:  10,
		progress:      func(model.Progress) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one assessment. It aborts only for an invalid request or a
// query stage with no usable output; per-question failures degrade and the
// run completes with best-effort data.
func (e *Engine) Run(ctx context.Context, req model.AssessmentRequest) (*model.Run, error) {
	questions, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	total := len(questions)

	// Persistence survives cancellation so drained partial results are kept.
	persistCtx := context.WithoutCancel(ctx)

	run, err := e.store.CreateRun(persistCtx, req.Company)
	if err != nil {
		return nil, eris.Wrap(err, "assessment: create run")
	}
	logger := zap.L().With(zap.String("run_id", run.ID), zap.String("company", req.Company.Name))

	// Fresh analyzer per run: its memo cache and usage counters must not
	// carry over from an earlier assessment of the same company.
	analyzer := e.newAnalyzer()
	usageBefore := analyzer.Usage()

	e.emit(model.StageSetup, 0, total, "run created")
	logger.Info("assessment started", zap.Int("questions", total))

	// Query stage.
	e.setStatus(persistCtx, run, model.RunStatusQuerying)
	e.emit(model.StageQuestions, 0, total, "querying answer engine")

	records, failures := e.querier.BatchQuery(ctx, questions)
	e.recordFailures(persistCtx, run.ID, failures, logger)

	if err := e.store.SaveAnswerRecords(persistCtx, run.ID, records); err != nil {
		logger.Warn("persist answers failed", zap.Error(err))
	}
	e.emit(model.StageQuestions, total, total, "answers collected")

	if len(failures) == total {
		msg := "all questions failed in the query stage"
		if err := e.store.MarkRunFailed(persistCtx, run.ID, msg); err != nil {
			logger.Warn("mark run failed errored", zap.Error(err))
		}
		run.Status = model.RunStatusFailed
		run.Error = msg
		return run, eris.Wrap(ErrPipelineFailed, msg)
	}

	// Analysis stage.
	e.setStatus(persistCtx, run, model.RunStatusAnalyzing)
	analyses := e.analyzeAll(ctx, analyzer, req.Company, questions, records)
	e.emit(model.StageAnalysis, total, total, "analysis complete")

	// Scoring stage.
	e.setStatus(persistCtx, run, model.RunStatusScoring)
	e.emit(model.StageScoring, 0, total, "scoring")
	score := e.scorer.Score(analyses)

	succeeded := 0
	for _, rec := range records {
		if !rec.Degraded {
			succeeded++
		}
	}
	runCost := e.costs.RunTotal(run.ID, e.analysisModel, succeeded, usageDelta(analyzer.Usage(), usageBefore))

	if err := e.store.SaveScore(persistCtx, run.ID, &score, runCost); err != nil {
		logger.Warn("persist score failed", zap.Error(err))
	}

	run.Status = model.RunStatusComplete
	run.Score = &score
	run.Answers = records
	run.CostUSD = runCost
	run.UpdatedAt = time.Now().UTC()

	e.emit(model.StageComplete, total, total, fmt.Sprintf("overall %.1f", score.Overall))
	logger.Info("assessment complete",
		zap.Float64("overall", score.Overall),
		zap.Int("degraded", total-succeeded),
		zap.Float64("cost_usd", runCost))
	return run, nil
}

// analyzeAll runs the analysis adapter over every question in bounded
// sub-batches. Cancellation stops scheduling and substitutes fallbacks for
// the remainder; in-flight analyses drain and their results are kept.
func (e *Engine) analyzeAll(ctx context.Context, analyzer Analyzer, company model.Company, questions []model.Question, records []model.AnswerRecord) []model.QuestionAnalysis {
	total := len(questions)
	analyses := make([]model.QuestionAnalysis, total)
	identity := classifier.IdentityFor(company)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(e.subBatchSize)

	var mu sync.Mutex
	done := 0

	for i := range questions {
		if ctx.Err() != nil {
			analyses[i] = analysis.FallbackAnalysis(company, questions[i], records[i], identity)
			continue
		}
		g.Go(func() error {
			qa := analyzer.Analyze(gctx, company, questions[i], records[i])
			mu.Lock()
			analyses[i] = qa
			done++
			completed := done
			mu.Unlock()
			e.emit(model.StageAnalysis, completed, total, "analyzing answers")
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return analyses
}

// recordFailures persists query failures to the dead-letter queue so a
// later run can re-issue just the failed questions.
func (e *Engine) recordFailures(ctx context.Context, runID string, failures []query.Failure, logger *zap.Logger) {
	now := time.Now().UTC()
	for _, f := range failures {
		entry := resilience.DLQEntry{
			ID:           uuid.New().String(),
			RunID:        runID,
			Question:     f.Question,
			Error:        f.Err.Error(),
			ErrorType:    resilience.ClassifyError(f.Err),
			MaxRetries:   3,
			CreatedAt:    now,
			LastFailedAt: now,
		}
		if err := e.store.AddDLQ(ctx, entry); err != nil {
			logger.Warn("dlq persist failed",
				zap.String("question_id", f.Question.ID),
				zap.Error(err))
		}
	}
}

func (e *Engine) setStatus(ctx context.Context, run *model.Run, status model.RunStatus) {
	run.Status = status
	if err := e.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
		zap.L().Warn("update run status failed",
			zap.String("run_id", run.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func usageDelta(after, before anthropic.TokenUsage) anthropic.TokenUsage {
	return anthropic.TokenUsage{
		InputTokens:              after.InputTokens - before.InputTokens,
		OutputTokens:             after.OutputTokens - before.OutputTokens,
		CacheCreationInputTokens: after.CacheCreationInputTokens - before.CacheCreationInputTokens,
		CacheReadInputTokens:     after.CacheReadInputTokens - before.CacheReadInputTokens,
	}
}

func (e *Engine) emit(stage model.Stage, completed, total int, message string) {
	e.progress(model.Progress{Stage: stage, Completed: completed, Total: total, Message: message})
}

// validateRequest checks request-level validity and fills in missing
// question ids and positions.
func validateRequest(req model.AssessmentRequest) ([]model.Question, error) {
	var problems []string
	if strings.TrimSpace(req.Company.ID) == "" {
		problems = append(problems, "company id is required")
	}
	if strings.TrimSpace(req.Company.Name) == "" {
		problems = append(problems, "company name is required")
	}
	if strings.TrimSpace(req.Company.Domain) == "" {
		problems = append(problems, "company domain is required")
	}
	if len(req.Questions) == 0 {
		problems = append(problems, "at least one question is required")
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			problems = append(problems, fmt.Sprintf("question %d has empty text", i+1))
		}
		if !model.ValidQuestionType(q.Type) {
			problems = append(problems, fmt.Sprintf("question %d has unknown type %q", i+1, q.Type))
		}
		if strings.TrimSpace(q.ID) == "" {
			q.ID = fmt.Sprintf("q-%d", i+1)
		}
		if q.Position == 0 {
			q.Position = i + 1
		}
		questions[i] = q
	}

	if len(problems) > 0 {
		return nil, eris.Wrap(ErrPipelineFailed, strings.Join(problems, "; "))
	}
	return questions, nil
}
