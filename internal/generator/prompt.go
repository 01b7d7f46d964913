package generator

import (
	"fmt"
	"strings"

	"github.com/hyperjump/mondai/internal/models"
)

const systemPrompt = `You are a university teaching assistant writing exam questions from lecture material. Respond with a single JSON object of the form {"questions": [{"question": "...", "answer": "...", "difficulty": "..."}]}. Base every question strictly on the provided material. Do not invent facts that are not in the material.`

// difficultyInstruction tells the model what a question at each tier
// should demand of the student.
func difficultyInstruction(d models.Difficulty) string {
	switch d {
	case models.DifficultyEasy:
		return "Write factual recall questions with short, unambiguous answers taken directly from the material."
	case models.DifficultyHard:
		return "Write questions that require synthesizing multiple parts of the material, comparing concepts, or reasoning about consequences. Answers should be several sentences."
	default:
		return "Write questions that test understanding of a single concept, requiring a one to three sentence explanation rather than a bare fact."
	}
}

// buildUserPrompt assembles the generation request from retrieved chunks.
// avoid lists questions already generated for this lecture so the model
// steers away from repeating them.
func buildUserPrompt(chunks []string, difficulty models.Difficulty, count int, avoid []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d %s questions with model answers from the lecture material below.\n", count, difficulty)
	b.WriteString(difficultyInstruction(difficulty))
	b.WriteString("\n\nLecture material:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	if len(avoid) > 0 {
		b.WriteString("\nDo not repeat or rephrase any of these existing questions:\n")
		for _, q := range avoid {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}
