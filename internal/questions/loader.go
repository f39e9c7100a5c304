// Package questions loads assessment question batteries from YAML files.
package questions

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/visibility-cli/internal/model"
)

type fileQuestion struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
	Type string `yaml:"type"`
}

// Load reads a question battery from a YAML file. Every entry needs text
// and a known type; ids default to q-<position> and positions follow file
// order.
func Load(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "questions: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a question battery from YAML bytes.
func Parse(data []byte) ([]model.Question, error) {
	var wrapper struct {
		Questions []fileQuestion `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "questions: parse yaml")
	}
	if len(wrapper.Questions) == 0 {
		return nil, eris.New("questions: file contains no questions")
	}

	questions := make([]model.Question, 0, len(wrapper.Questions))
	seen := make(map[string]struct{}, len(wrapper.Questions))
	for i, fq := range wrapper.Questions {
		text := strings.TrimSpace(fq.Text)
		if text == "" {
			return nil, eris.Errorf("questions: entry %d has empty text", i+1)
		}

		qt := model.QuestionType(fq.Type)
		if !model.ValidQuestionType(qt) {
			return nil, eris.Errorf("questions: entry %d has unknown type %q", i+1, fq.Type)
		}

		id := strings.TrimSpace(fq.ID)
		if id == "" {
			id = fmt.Sprintf("q-%d", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, eris.Errorf("questions: duplicate id %q", id)
		}
		seen[id] = struct{}{}

		questions = append(questions, model.Question{
			ID:       id,
			Text:     text,
			Type:     qt,
			Position: i + 1,
		})
	}
	return questions, nil
}
