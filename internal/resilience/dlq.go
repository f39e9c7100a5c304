package resilience

import (
	"time"

	"github.com/sells-group/visibility-cli/internal/model"
)

// DLQEntry records a question whose answer-engine query failed permanently
// during a run. Entries are persisted so a later run can re-issue just the
// failed questions instead of the whole battery.
type DLQEntry struct {
	ID           string         `json:"id"`
	RunID        string         `json:"run_id"`
	Question     model.Question `json:"question"`
	Error        string         `json:"error"`
	ErrorType    string         `json:"error_type"` // "transient" or "permanent"
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	CreatedAt    time.Time      `json:"created_at"`
	LastFailedAt time.Time      `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
