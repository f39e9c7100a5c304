package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidQuestionType(t *testing.T) {
	valid := []QuestionType{
		QuestionTypeDirect,
		QuestionTypeRecommendation,
		QuestionTypeComparison,
		QuestionTypeIndirect,
		QuestionTypeExplanatory,
	}
	for _, qt := range valid {
		assert.True(t, ValidQuestionType(qt), string(qt))
	}

	assert.False(t, ValidQuestionType("conversational"))
	assert.False(t, ValidQuestionType(""))
}

func TestCitationBreakdown_AddAndTotal(t *testing.T) {
	var b CitationBreakdown
	b.Add(BucketOwned)
	b.Add(BucketOperated)
	b.Add(BucketEarned)
	b.Add(BucketEarned)
	b.Add(BucketCompetitor)
	b.Add("unknown") // ignored

	assert.Equal(t, 1, b.Owned)
	assert.Equal(t, 1, b.Operated)
	assert.Equal(t, 2, b.Earned)
	assert.Equal(t, 1, b.Competitor)
	assert.Equal(t, 5, b.Total())
}

func TestDetectedMention_NormalizesEmptyFields(t *testing.T) {
	m := DetectedMention("q1", "", "", 0.9, "found in answer")
	assert.True(t, m.Detected)
	assert.Equal(t, PositionPassing, m.Position)
	assert.Equal(t, SentimentNeutral, m.Sentiment)
}

func TestDetectedMention_RejectsPositionNone(t *testing.T) {
	m := DetectedMention("q1", PositionNone, SentimentPositive, 0.8, "")
	assert.Equal(t, PositionPassing, m.Position)
}

func TestNoMention_PairsWithPositionNone(t *testing.T) {
	m := NoMention("q2", 0.7, "not present")
	assert.False(t, m.Detected)
	assert.Equal(t, PositionNone, m.Position)
	assert.Equal(t, SentimentNeutral, m.Sentiment)
}
