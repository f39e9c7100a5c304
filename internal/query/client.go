// Package query issues answer-engine requests with quota enforcement,
// retry/backoff, and batch orchestration. Failed batch items degrade to
// placeholder records instead of aborting the batch.
package query

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/quota"
	"github.com/sells-group/visibility-cli/internal/resilience"
	"github.com/sells-group/visibility-cli/pkg/answerengine"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultSubBatchSize = 10
	defaultMaxJitter    = 500 * time.Millisecond
)

// Failure records a question whose query failed after all retries. The
// corresponding slot in the batch result carries a degraded placeholder.
type Failure struct {
	Question model.Question
	Err      error
}

// Client wraps the answer-engine API with quota checks, retries, and a
// circuit breaker.
type Client struct {
	engine       answerengine.Client
	guard        *quota.Guard
	breaker      *resilience.CircuitBreaker
	retryCfg     resilience.RetryConfig
	model        string
	timeout      time.Duration
	subBatchSize int
	pace         *rate.Limiter
	maxJitter    time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithModel sets the answer-engine model for all queries.
func WithModel(m string) Option {
	return func(c *Client) { c.model = m }
}

// WithTimeout sets the per-call wall-clock timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryConfig overrides the retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// WithSubBatchSize bounds concurrent in-flight queries during BatchQuery.
func WithSubBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.subBatchSize = n
		}
	}
}

// WithPace overrides the inter-request pacing limiter.
func WithPace(l *rate.Limiter) Option {
	return func(c *Client) { c.pace = l }
}

// WithMaxJitter bounds the random spacing added before each batched request.
// Zero disables jitter.
func WithMaxJitter(d time.Duration) Option {
	return func(c *Client) { c.maxJitter = d }
}

// NewClient creates a resilient query client. The quota guard is shared,
// explicitly owned state: callers pass the same guard to every client that
// draws on the same API quota.
func NewClient(engine answerengine.Client, guard *quota.Guard, opts ...Option) *Client {
	c := &Client{
		engine:       engine,
		guard:        guard,
		retryCfg:     resilience.DefaultRetryConfig(),
		timeout:      defaultTimeout,
		subBatchSize: defaultSubBatchSize,
		pace:         rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		maxJitter:    defaultMaxJitter,
		nowFunc:      time.Now,
	}
	c.retryCfg.OnRetry = resilience.RetryLogger("answerengine", "chat_completion")
	c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		ShouldTrip: resilience.IsTransient,
	})
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query fetches the answer and citations for one question. The quota guard
// is consulted before any network activity; a *quota.RateLimitError is
// returned untouched so callers can read the wait time. Transient failures
// are retried with exponential backoff, honoring any server retry-after
// hint. Successful responses count against the quota exactly once.
func (c *Client) Query(ctx context.Context, q model.Question) (*model.AnswerRecord, error) {
	if err := c.guard.Reserve(); err != nil {
		return nil, err
	}

	req := answerengine.ChatCompletionRequest{
		Model:           c.model,
		Messages:        []answerengine.Message{{Role: "user", Content: q.Text}},
		ReturnCitations: true,
	}

	resp, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*answerengine.ChatCompletionResponse, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*answerengine.ChatCompletionResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.engine.ChatCompletion(callCtx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "query: question %s", q.ID)
	}

	c.guard.Record()

	record := &model.AnswerRecord{
		QuestionID:   q.ID,
		RawText:      resp.AnswerText(),
		CitationURLs: resp.Citations,
		FetchedAt:    c.nowFunc().UTC(),
	}

	// A well-formed HTTP response with no answer content is malformed for
	// our purposes: keep the slot, mark it degraded.
	if record.RawText == "" {
		zap.L().Warn("query: empty answer content",
			zap.String("question_id", q.ID),
		)
		record.Degraded = true
	}

	return record, nil
}

// BatchQuery fetches answers for all questions. The result always has the
// same length and order as the input; questions that failed permanently get
// a degraded placeholder record and appear in the returned failures.
// Requests run in bounded concurrent sub-batches with jittered spacing.
// After ctx is canceled no new requests start; in-flight requests drain.
func (c *Client) BatchQuery(ctx context.Context, questions []model.Question) ([]model.AnswerRecord, []Failure) {
	records := make([]model.AnswerRecord, len(questions))
	failures := make([]Failure, 0)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(c.subBatchSize)

	var mu sync.Mutex
	for i, q := range questions {
		if ctx.Err() != nil {
			// Canceled: fill the remaining slots with placeholders and stop
			// scheduling. Whatever already completed stays usable.
			records[i] = degradedRecord(q, c.nowFunc())
			continue
		}

		// Jittered spacing avoids burst patterns against the API.
		if c.maxJitter > 0 {
			sleepCtx(ctx, time.Duration(rand.Int64N(int64(c.maxJitter))))
		}
		if err := c.pace.Wait(ctx); err != nil {
			records[i] = degradedRecord(q, c.nowFunc())
			continue
		}

		g.Go(func() error {
			record, err := c.Query(gctx, q)
			if err != nil {
				zap.L().Error("query: batch item failed",
					zap.String("question_id", q.ID),
					zap.Error(err),
				)
				records[i] = degradedRecord(q, c.nowFunc())
				mu.Lock()
				failures = append(failures, Failure{Question: q, Err: err})
				mu.Unlock()
				return nil
			}
			records[i] = *record
			return nil
		})
	}

	_ = g.Wait()
	return records, failures
}

func degradedRecord(q model.Question, now time.Time) model.AnswerRecord {
	return model.AnswerRecord{
		QuestionID: q.ID,
		Degraded:   true,
		FetchedAt:  now.UTC(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
