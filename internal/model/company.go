package model

import "time"

// Company identifies the business whose answer-engine visibility is assessed.
type Company struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Domain          string   `json:"domain"`
	Industry        string   `json:"industry,omitempty"`
	Description     string   `json:"description,omitempty"`
	OwnedDomains    []string `json:"owned_domains,omitempty"`
	OperatedDomains []string `json:"operated_domains,omitempty"`
}

// AssessmentRequest is the inbound contract for a single assessment run.
type AssessmentRequest struct {
	Company   Company    `json:"company"`
	Questions []Question `json:"questions"`
}

// RunStatus represents the current state of an assessment run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusQuerying  RunStatus = "querying"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusScoring   RunStatus = "scoring"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single assessment run for a company.
type Run struct {
	ID        string           `json:"id"`
	Company   Company          `json:"company"`
	Status    RunStatus        `json:"status"`
	Score     *VisibilityScore `json:"score,omitempty"`
	Answers   []AnswerRecord   `json:"answers,omitempty"`
	Error     string           `json:"error,omitempty"`
	CostUSD   float64          `json:"cost_usd,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Stage names a checkpoint in the assessment pipeline.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageQuestions Stage = "questions"
	StageAnalysis  Stage = "analysis"
	StageScoring   Stage = "scoring"
	StageComplete  Stage = "complete"
)

// Progress is emitted at pipeline checkpoints for an external status consumer.
// No acknowledgement is expected.
type Progress struct {
	Stage     Stage  `json:"stage"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}
