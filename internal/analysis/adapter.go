package analysis

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/classifier"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 2048
)

// Adapter turns raw answer records into validated QuestionAnalysis values
// by calling the semantic-analysis model. Every reply is validated before
// use; anything untrustworthy is replaced by the deterministic fallback, so
// Analyze never returns an error and never blocks the pipeline.
type Adapter struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	cache     *memoCache

	usageMu sync.Mutex
	usage   anthropic.TokenUsage
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithModel overrides the analysis model.
func WithModel(m string) Option {
	return func(a *Adapter) {
		if m != "" {
			a.model = m
		}
	}
}

// WithMaxTokens overrides the per-call output token ceiling.
func WithMaxTokens(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// NewAdapter builds an Adapter with a fresh memo cache. One Adapter is
// scoped to one assessment run so cache entries never leak across runs.
func NewAdapter(ai anthropic.Client, opts ...Option) *Adapter {
	a := &Adapter{
		ai:        ai,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		cache:     newMemoCache(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Usage reports the accumulated token usage for cost attribution.
func (a *Adapter) Usage() anthropic.TokenUsage {
	a.usageMu.Lock()
	defer a.usageMu.Unlock()
	return a.usage
}

// Analyze produces the validated analysis for one answered question.
// Degraded answer records skip the model entirely. Repeated question text
// against the same company is served from the memo cache.
func (a *Adapter) Analyze(ctx context.Context, company model.Company, question model.Question, record model.AnswerRecord) model.QuestionAnalysis {
	identity := classifier.IdentityFor(company)

	if record.Degraded || record.RawText == "" {
		return FallbackAnalysis(company, question, record, identity)
	}

	key := cacheKey(company.ID, question.Text)
	if qa, ok := a.cache.get(key); ok {
		// Cached entries were analyzed for a different question ID.
		qa.QuestionID = question.ID
		qa.Mention.QuestionID = question.ID
		qa.Type = question.Type
		return qa
	}

	hints := classifier.ClassifyAll(record.CitationURLs, identity)

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt + "\n\n" + companyContext(company)),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(company, question, record, hints)},
		},
	})
	if err != nil {
		zap.L().Warn("analysis call failed, using fallback",
			zap.String("question_id", question.ID),
			zap.Error(err))
		return FallbackAnalysis(company, question, record, identity)
	}
	a.usageMu.Lock()
	a.usage.Add(resp.Usage)
	a.usageMu.Unlock()

	mention, competitors, topics, insights, err := decodeAnalysis(resp.Text(), question.ID)
	if err != nil {
		zap.L().Warn("analysis reply failed validation, using fallback",
			zap.String("question_id", question.ID),
			zap.Error(err))
		return FallbackAnalysis(company, question, record, identity)
	}

	// The classifier is authoritative for citation buckets; the model's
	// citation section is advisory only.
	qa := model.QuestionAnalysis{
		QuestionID:  question.ID,
		Type:        question.Type,
		Mention:     mention,
		Competitors: competitors,
		Citations:   hints,
		Topics:      topics,
		Insights:    insights,
	}

	a.cache.put(key, qa)
	return qa
}
