package assessment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/query"
	"github.com/sells-group/visibility-cli/internal/resilience"
	"github.com/sells-group/visibility-cli/internal/scorer"
	"github.com/sells-group/visibility-cli/internal/store"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

type mockQuerier struct {
	failIDs map[string]error
}

func (m *mockQuerier) BatchQuery(_ context.Context, questions []model.Question) ([]model.AnswerRecord, []query.Failure) {
	records := make([]model.AnswerRecord, len(questions))
	var failures []query.Failure
	for i, q := range questions {
		if err, ok := m.failIDs[q.ID]; ok {
			records[i] = model.AnswerRecord{QuestionID: q.ID, Degraded: true, FetchedAt: time.Now()}
			failures = append(failures, query.Failure{Question: q, Err: err})
			continue
		}
		records[i] = model.AnswerRecord{
			QuestionID:   q.ID,
			RawText:      "Acme Robotics leads the market.",
			CitationURLs: []string{"https://acme.com/about"},
			FetchedAt:    time.Now(),
		}
	}
	return records, failures
}

type mockAnalyzer struct {
	mu    sync.Mutex
	calls int
	usage anthropic.TokenUsage
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ model.Company, q model.Question, record model.AnswerRecord) model.QuestionAnalysis {
	m.mu.Lock()
	m.calls++
	m.usage.InputTokens += 1000
	m.usage.OutputTokens += 200
	m.mu.Unlock()
	if record.Degraded {
		return model.QuestionAnalysis{
			QuestionID: q.ID,
			Type:       q.Type,
			Mention:    model.NoMention(q.ID, 0, "degraded"),
			Fallback:   true,
		}
	}
	return model.QuestionAnalysis{
		QuestionID: q.ID,
		Type:       q.Type,
		Mention:    model.DetectedMention(q.ID, model.PositionPrimary, model.SentimentPositive, 0.9, ""),
	}
}

func (m *mockAnalyzer) Usage() anthropic.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRequest(n int) model.AssessmentRequest {
	req := model.AssessmentRequest{
		Company: model.Company{ID: "co-1", Name: "Acme Robotics", Domain: "acme.com"},
	}
	types := []model.QuestionType{
		model.QuestionTypeDirect, model.QuestionTypeRecommendation,
		model.QuestionTypeComparison, model.QuestionTypeIndirect,
		model.QuestionTypeExplanatory,
	}
	for i := 0; i < n; i++ {
		req.Questions = append(req.Questions, model.Question{
			Text: "question " + string(rune('a'+i)),
			Type: types[i%len(types)],
		})
	}
	return req
}

func newTestEngine(t *testing.T, st store.Store, q Querier, a Analyzer, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(st, q, func() Analyzer { return a }, scorer.NewEngine(scorer.DefaultConfig()), cost.NewCalculator(cost.DefaultRates()), opts...)
}

func TestRun_HappyPath(t *testing.T) {
	st := newTestStore(t)
	analyzer := &mockAnalyzer{usage: anthropic.TokenUsage{InputTokens: 1_000_000}}

	var events []model.Progress
	var mu sync.Mutex
	e := newTestEngine(t, st, &mockQuerier{}, analyzer,
		WithProgress(func(p model.Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		}))

	run, err := e.Run(context.Background(), testRequest(5))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Score)
	assert.Greater(t, run.Score.Overall, 0.0)
	assert.Equal(t, 1.0, run.Score.MentionRate)
	assert.Len(t, run.Answers, 5)
	assert.Greater(t, run.CostUSD, 0.0)
	assert.Equal(t, 5, analyzer.calls)

	// Persisted state matches.
	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
	require.NotNil(t, stored.Score)
	assert.Equal(t, run.Score.Overall, stored.Score.Overall)
	assert.Len(t, stored.Answers, 5)

	// Stage progression in order, ending with complete.
	stages := make([]model.Stage, 0, len(events))
	for _, ev := range events {
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, model.StageSetup, stages[0])
	assert.Equal(t, model.StageComplete, stages[len(stages)-1])
	assert.Contains(t, stages, model.StageQuestions)
	assert.Contains(t, stages, model.StageAnalysis)
	assert.Contains(t, stages, model.StageScoring)
}

func TestRun_InvalidRequest(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(t, st, &mockQuerier{}, &mockAnalyzer{})

	tests := []struct {
		name    string
		mutate  func(*model.AssessmentRequest)
		wantMsg string
	}{
		{"missing company id", func(r *model.AssessmentRequest) { r.Company.ID = "" }, "company id"},
		{"missing company name", func(r *model.AssessmentRequest) { r.Company.Name = "" }, "company name"},
		{"missing company domain", func(r *model.AssessmentRequest) { r.Company.Domain = "" }, "company domain"},
		{"no questions", func(r *model.AssessmentRequest) { r.Questions = nil }, "at least one question"},
		{"empty question text", func(r *model.AssessmentRequest) { r.Questions[0].Text = "" }, "empty text"},
		{"unknown question type", func(r *model.AssessmentRequest) { r.Questions[0].Type = "trivia" }, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(2)
			tt.mutate(&req)

			_, err := e.Run(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPipelineFailed))
			assert.Contains(t, err.Error(), tt.wantMsg)

			// No run row is created for an invalid request.
			runs, err := st.ListRuns(context.Background(), store.RunFilter{})
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestRun_PartialFailureStillCompletes(t *testing.T) {
	st := newTestStore(t)
	querier := &mockQuerier{failIDs: map[string]error{
		"q-2": resilience.NewFatalError(errors.New("401 unauthorized"), 401),
	}}
	e := newTestEngine(t, st, querier, &mockAnalyzer{})

	run, err := e.Run(context.Background(), testRequest(3))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Len(t, run.Answers, 3)
	assert.True(t, run.Answers[1].Degraded)
	assert.InDelta(t, 2.0/3.0, run.Score.MentionRate, 1e-9)

	// The failed question landed in the DLQ.
	entries, err := st.ListDLQ(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q-2", entries[0].Question.ID)
	assert.Equal(t, "permanent", entries[0].ErrorType)
}

func TestRun_AllQuestionsFailedAbortsRun(t *testing.T) {
	st := newTestStore(t)
	querier := &mockQuerier{failIDs: map[string]error{
		"q-1": errors.New("boom"),
		"q-2": errors.New("boom"),
	}}
	e := newTestEngine(t, st, querier, &mockAnalyzer{})

	run, err := e.Run(context.Background(), testRequest(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPipelineFailed))
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "query stage")
}

func TestRun_CancelledContextScoresCompletedWork(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(t, st, &mockQuerier{}, &mockAnalyzer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The query mock ignores cancellation and returns answers; the engine
	// must still finish the run using fallback analyses for unscheduled
	// questions rather than erroring out.
	run, err := e.Run(ctx, testRequest(3))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Score)
}

func TestRun_FreshAnalyzerPerRun(t *testing.T) {
	st := newTestStore(t)

	var analyzers []*mockAnalyzer
	factory := func() Analyzer {
		a := &mockAnalyzer{}
		analyzers = append(analyzers, a)
		return a
	}
	e := NewEngine(st, &mockQuerier{}, factory,
		scorer.NewEngine(scorer.DefaultConfig()), cost.NewCalculator(cost.DefaultRates()))

	// Two assessments of the same company and battery: each must get its
	// own analyzer so no state from the first answers for the second.
	run1, err := e.Run(context.Background(), testRequest(2))
	require.NoError(t, err)
	run2, err := e.Run(context.Background(), testRequest(2))
	require.NoError(t, err)

	require.Len(t, analyzers, 2)
	assert.Equal(t, 2, analyzers[0].calls)
	assert.Equal(t, 2, analyzers[1].calls)

	// Each run's cost covers only its own usage.
	assert.InDelta(t, run1.CostUSD, run2.CostUSD, 1e-9)
}

func TestRun_QuestionIDsAssigned(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(t, st, &mockQuerier{}, &mockAnalyzer{})

	run, err := e.Run(context.Background(), testRequest(2))
	require.NoError(t, err)
	assert.Equal(t, "q-1", run.Answers[0].QuestionID)
	assert.Equal(t, "q-2", run.Answers[1].QuestionID)
}
