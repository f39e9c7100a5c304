package model

// MentionPosition describes how prominently the company appears in an answer.
type MentionPosition string

const (
	PositionPrimary   MentionPosition = "primary"
	PositionSecondary MentionPosition = "secondary"
	PositionPassing   MentionPosition = "passing"
	PositionNone      MentionPosition = "none"
)

// ValidMentionPosition reports whether p is a known mention position.
func ValidMentionPosition(p MentionPosition) bool {
	switch p {
	case PositionPrimary, PositionSecondary, PositionPassing, PositionNone:
		return true
	}
	return false
}

// Sentiment is the tone of the company's mention in an answer.
type Sentiment string

const (
	SentimentVeryPositive Sentiment = "very_positive"
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very_negative"
)

// ValidSentiment reports whether s is a known sentiment value.
func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentVeryPositive, SentimentPositive, SentimentNeutral,
		SentimentNegative, SentimentVeryNegative:
		return true
	}
	return false
}

// MentionAnalysis is the normalized mention signal for one question. The
// analysis service's reply is normalized into this shape exactly once at
// decode time; Detected=false always pairs with PositionNone so downstream
// consumers never re-check both fields.
type MentionAnalysis struct {
	QuestionID string          `json:"question_id"`
	Detected   bool            `json:"detected"`
	Position   MentionPosition `json:"position"`
	Sentiment  Sentiment       `json:"sentiment"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// DetectedMention builds a normalized detected-mention value.
func DetectedMention(questionID string, pos MentionPosition, sent Sentiment, confidence float64, reasoning string) MentionAnalysis {
	if pos == PositionNone || pos == "" {
		pos = PositionPassing
	}
	if sent == "" {
		sent = SentimentNeutral
	}
	return MentionAnalysis{
		QuestionID: questionID,
		Detected:   true,
		Position:   pos,
		Sentiment:  sent,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// NoMention builds a normalized not-detected value.
func NoMention(questionID string, confidence float64, reasoning string) MentionAnalysis {
	return MentionAnalysis{
		QuestionID: questionID,
		Detected:   false,
		Position:   PositionNone,
		Sentiment:  SentimentNeutral,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// CompetitorSource records how a competitor was surfaced.
type CompetitorSource string

const (
	CompetitorFromMention  CompetitorSource = "mention"
	CompetitorFromCitation CompetitorSource = "citation"
	CompetitorFromManual   CompetitorSource = "manual"
	CompetitorFromKnown    CompetitorSource = "known-list"
)

// CompetitorProfile is a competitor surfaced during analysis.
type CompetitorProfile struct {
	Name         string           `json:"name"`
	Domain       string           `json:"domain,omitempty"`
	Confidence   float64          `json:"confidence"`
	DetectedFrom CompetitorSource `json:"detected_from"`
}

// QuestionAnalysis is the validated per-question analysis consumed by the
// scoring engine. Fallback analyses carry Confidence 0 on the mention and a
// reasoning string explaining the degradation, so downstream consumers can
// filter them.
type QuestionAnalysis struct {
	QuestionID  string              `json:"question_id"`
	Type        QuestionType        `json:"question_type"`
	Mention     MentionAnalysis     `json:"mention"`
	Competitors []CompetitorProfile `json:"competitors,omitempty"`
	Citations   []Citation          `json:"citations,omitempty"`
	Topics      []string            `json:"topics,omitempty"`
	Insights    []string            `json:"insights,omitempty"`
	Fallback    bool                `json:"fallback,omitempty"`
}
