package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/mondai/internal/models"
)

// errMalformed marks a completion that could not be parsed into questions.
// Parse failures are retried with a fresh completion up to the configured
// limit.
var errMalformed = fmt.Errorf("malformed generation response")

type generatedQuestion struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type generationResponse struct {
	Questions []generatedQuestion `json:"questions"`
}

// parseQuestions extracts the question list from a model reply. The reply
// may wrap the JSON object in prose or code fences; everything outside the
// outermost braces is discarded.
func parseQuestions(raw string, want models.Difficulty) ([]generatedQuestion, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", errMalformed)
	}
	var resp generationResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(resp.Questions) == 0 {
		return nil, fmt.Errorf("%w: empty question list", errMalformed)
	}
	var out []generatedQuestion
	for _, q := range resp.Questions {
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Question == "" || q.Answer == "" {
			continue
		}
		// The model occasionally labels a different tier; the requested
		// tier is authoritative.
		q.Difficulty = string(want)
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable questions", errMalformed)
	}
	return out, nil
}
