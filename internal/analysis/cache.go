package analysis

import (
	"sync"

	"github.com/sells-group/visibility-cli/internal/model"
)

// memoCache deduplicates analysis calls within a run. Two questions with
// identical text against the same company yield the same analysis, so the
// second hit must not spend another model call.
type memoCache struct {
	mu      sync.Mutex
	entries map[string]model.QuestionAnalysis
}

func newMemoCache() *memoCache {
	return &memoCache{entries: make(map[string]model.QuestionAnalysis)}
}

func cacheKey(companyID, questionText string) string {
	return companyID + "\x00" + questionText
}

func (c *memoCache) get(key string) (model.QuestionAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qa, ok := c.entries[key]
	return qa, ok
}

func (c *memoCache) put(key string, qa model.QuestionAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = qa
}
