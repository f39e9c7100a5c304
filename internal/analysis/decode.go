package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/model"
)

// rawAnalysis is the wire shape of the model's analysis reply. All five
// sections are required; a reply missing any of them is rejected rather
// than partially trusted.
type rawAnalysis struct {
	MentionAnalysis    json.RawMessage `json:"mention_analysis"`
	CompetitorAnalysis *rawCompetitors `json:"competitor_analysis"`
	CitationAnalysis   *rawCitations   `json:"citation_analysis"`
	TopicAnalysis      *rawTopics      `json:"topic_analysis"`
	Insights           []string        `json:"insights"`
}

type rawMention struct {
	MentionDetected *bool   `json:"mention_detected"`
	Position        string  `json:"position"`
	Sentiment       string  `json:"sentiment"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
}

type rawCompetitors struct {
	Competitors []rawCompetitor `json:"competitors"`
}

type rawCompetitor struct {
	Name       string  `json:"name"`
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
}

type rawCitations struct {
	Citations []rawCitation `json:"citations"`
}

type rawCitation struct {
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
}

type rawTopics struct {
	Topics []string `json:"topics"`
}

// cleanJSON strips markdown code fences and surrounding prose so the body
// can be fed to the JSON decoder. Models occasionally wrap the object in
// ```json fences or prepend a sentence despite instructions.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}

	// Fall back to the outermost object if prose surrounds it.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// decodeAnalysis parses and validates a model reply. It returns an error
// for anything that cannot be trusted end to end: malformed JSON, a missing
// section, or a mention_detected that is not a boolean. Callers fall back
// to the deterministic analysis on error.
func decodeAnalysis(body string, questionID string) (model.MentionAnalysis, []model.CompetitorProfile, []string, []string, error) {
	var zero model.MentionAnalysis

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(cleanJSON(body)), &raw); err != nil {
		return zero, nil, nil, nil, eris.Wrap(err, "analysis: unmarshal reply")
	}

	if len(raw.MentionAnalysis) == 0 {
		return zero, nil, nil, nil, eris.New("analysis: missing mention_analysis section")
	}
	if raw.CompetitorAnalysis == nil {
		return zero, nil, nil, nil, eris.New("analysis: missing competitor_analysis section")
	}
	if raw.CitationAnalysis == nil {
		return zero, nil, nil, nil, eris.New("analysis: missing citation_analysis section")
	}
	if raw.TopicAnalysis == nil {
		return zero, nil, nil, nil, eris.New("analysis: missing topic_analysis section")
	}
	if raw.Insights == nil {
		return zero, nil, nil, nil, eris.New("analysis: missing insights section")
	}

	mention, err := decodeMention(raw.MentionAnalysis, questionID)
	if err != nil {
		return zero, nil, nil, nil, err
	}

	competitors := make([]model.CompetitorProfile, 0, len(raw.CompetitorAnalysis.Competitors))
	for _, c := range raw.CompetitorAnalysis.Competitors {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		competitors = append(competitors, model.CompetitorProfile{
			Name:         name,
			Domain:       normalizeCompetitorDomain(name, c.Domain),
			Confidence:   clamp01(c.Confidence),
			DetectedFrom: model.CompetitorFromMention,
		})
	}

	return mention, competitors, raw.TopicAnalysis.Topics, raw.Insights, nil
}

// decodeMention accepts both the structured mention object and the legacy
// shape where mention_analysis is a bare boolean.
func decodeMention(raw json.RawMessage, questionID string) (model.MentionAnalysis, error) {
	var zero model.MentionAnalysis

	var legacy bool
	if err := json.Unmarshal(raw, &legacy); err == nil {
		if legacy {
			return model.DetectedMention(questionID, "", "", 0.5, "legacy mention shape"), nil
		}
		return model.NoMention(questionID, 0.5, "legacy mention shape"), nil
	}

	var m rawMention
	if err := json.Unmarshal(raw, &m); err != nil {
		return zero, eris.Wrap(err, "analysis: unmarshal mention_analysis")
	}
	if m.MentionDetected == nil {
		return zero, eris.New("analysis: mention_detected is not a boolean")
	}

	if !*m.MentionDetected {
		return model.NoMention(questionID, clamp01(m.Confidence), m.Reasoning), nil
	}

	// Position and sentiment are normalized into the enums exactly once,
	// here. Case slips are coerced; anything else is rejected so the caller
	// falls back rather than scoring an unknown value as a zero multiplier.
	pos := model.MentionPosition(strings.ToLower(strings.TrimSpace(m.Position)))
	if pos != "" && !model.ValidMentionPosition(pos) {
		return zero, eris.Errorf("analysis: unknown mention position %q", m.Position)
	}
	sent := model.Sentiment(strings.ToLower(strings.TrimSpace(m.Sentiment)))
	if sent != "" && !model.ValidSentiment(sent) {
		return zero, eris.Errorf("analysis: unknown sentiment %q", m.Sentiment)
	}

	return model.DetectedMention(
		questionID,
		pos,
		sent,
		clamp01(m.Confidence),
		m.Reasoning,
	), nil
}

// normalizeCompetitorDomain keeps the model-supplied domain when present
// and otherwise guesses one from the competitor name.
func normalizeCompetitorDomain(name, domain string) string {
	domain = strings.TrimSpace(strings.ToLower(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	if i := strings.Index(domain, "/"); i >= 0 {
		domain = domain[:i]
	}
	if domain != "" {
		return domain
	}
	return guessDomain(name)
}

// guessDomain derives a plausible domain from a company name: lowercased,
// alphanumerics only, ".com" appended. Good enough for dedup against the
// citation list; never presented as verified.
func guessDomain(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + ".com"
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
