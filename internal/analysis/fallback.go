package analysis

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/visibility-cli/internal/classifier"
	"github.com/sells-group/visibility-cli/internal/model"
)

var fold = cases.Fold()

// FallbackAnalysis builds a deterministic analysis when the semantic
// service is unavailable or returned an untrustworthy reply. Mention
// detection is a case-folded substring match on the company name, citations
// come entirely from the classifier, and competitors are omitted rather
// than guessed. Confidence is 0 so consumers can filter degraded results.
func FallbackAnalysis(company model.Company, question model.Question, record model.AnswerRecord, identity classifier.Identity) model.QuestionAnalysis {
	mention := model.NoMention(question.ID, 0, "fallback: analysis service unavailable")
	if company.Name != "" && strings.Contains(fold.String(record.RawText), fold.String(company.Name)) {
		mention = model.MentionAnalysis{
			QuestionID: question.ID,
			Detected:   true,
			Position:   model.PositionPassing,
			Sentiment:  model.SentimentNeutral,
			Confidence: 0,
			Reasoning:  "fallback: name substring match",
		}
	}

	return model.QuestionAnalysis{
		QuestionID: question.ID,
		Type:       question.Type,
		Mention:    mention,
		Citations:  classifier.ClassifyAll(record.CitationURLs, identity),
		Fallback:   true,
	}
}
