package analysis

import (
	"fmt"
	"strings"

	"github.com/sells-group/visibility-cli/internal/model"
)

// systemPrompt is the shared system instruction for answer analysis. It is
// identical for every question in a run, so it is sent as a cached system
// block.
const systemPrompt = `You are an expert brand-visibility analyst. You examine AI-generated answers to determine how visible a specific company is within them.

Rules:
- Analyze ONLY the provided answer text and citation list
- Return a single valid JSON object and nothing else
- The object MUST contain exactly these five sections: mention_analysis, competitor_analysis, citation_analysis, topic_analysis, insights
- mention_analysis: {"mention_detected": <bool>, "position": "primary"|"secondary"|"passing"|"none", "sentiment": "very_positive"|"positive"|"neutral"|"negative"|"very_negative", "confidence": <0.0-1.0>, "reasoning": "<brief explanation>"}
- competitor_analysis: {"competitors": [{"name": "<company>", "domain": "<domain or empty>", "confidence": <0.0-1.0>}]}
- citation_analysis: {"citations": [{"url": "<url>", "bucket": "owned"|"operated"|"earned"|"competitor"}]}
- topic_analysis: {"topics": ["<topic>", ...]}
- insights: ["<observation>", ...]
- A mention means the company itself is named or unambiguously referenced, not merely its product category
- Confidence reflects how directly the answer supports your conclusion`

// companyContext renders the company identity block shared by every
// question prompt in a run.
func companyContext(c model.Company) string {
	var b strings.Builder
	b.WriteString("--- Company Under Assessment ---\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Domain: %s\n", c.Domain)
	if c.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", c.Industry)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	if len(c.OperatedDomains) > 0 {
		fmt.Fprintf(&b, "Operated Domains: %s\n", strings.Join(c.OperatedDomains, ", "))
	}
	return b.String()
}

// buildPrompt renders the per-question user prompt: question, answer text,
// and the citation list annotated with deterministic domain hints from the
// citation classifier.
func buildPrompt(company model.Company, question model.Question, record model.AnswerRecord, hints []model.Citation) string {
	var b strings.Builder

	b.WriteString(companyContext(company))

	b.WriteString("\n--- Question Asked ---\n")
	fmt.Fprintf(&b, "[%s] %s\n", question.Type, question.Text)

	b.WriteString("\n--- AI-Generated Answer ---\n")
	b.WriteString(record.RawText)
	b.WriteString("\n")

	if len(record.CitationURLs) > 0 {
		b.WriteString("\n--- Citations ---\n")
		for i, u := range record.CitationURLs {
			hint := ""
			if i < len(hints) {
				hint = fmt.Sprintf(" (domain: %s, heuristic bucket: %s)", hints[i].ResolvedDomain, hints[i].Bucket)
			}
			fmt.Fprintf(&b, "%d. %s%s\n", i+1, u, hint)
		}
	}

	b.WriteString("\nAnalyze the answer and return the five-section JSON object.")
	return b.String()
}
