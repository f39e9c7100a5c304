package model

import "time"

// QuestionType is the difficulty category of an assessment question. Harder
// categories are worth more in the final score because earning an organic
// mention there is rarer.
type QuestionType string

const (
	QuestionTypeDirect         QuestionType = "direct"
	QuestionTypeRecommendation QuestionType = "recommendation"
	QuestionTypeComparison     QuestionType = "comparison"
	QuestionTypeIndirect       QuestionType = "indirect"
	QuestionTypeExplanatory    QuestionType = "explanatory"
)

// ValidQuestionType reports whether t is one of the known categories.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionTypeDirect, QuestionTypeRecommendation, QuestionTypeComparison,
		QuestionTypeIndirect, QuestionTypeExplanatory:
		return true
	}
	return false
}

// Question is a single battery question. Immutable once generated.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Position int          `json:"position"`
}

// AnswerRecord holds the answer-engine response for one question. Created
// once per question per run and never mutated. Degraded records stand in for
// questions whose query failed after retries so batch results keep their
// shape.
type AnswerRecord struct {
	QuestionID   string    `json:"question_id"`
	RawText      string    `json:"raw_text"`
	CitationURLs []string  `json:"citation_urls,omitempty"`
	Degraded     bool      `json:"degraded,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}
