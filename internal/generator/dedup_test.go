package generator

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"こんにちは", "こんばんは", 2},
	}
	for _, c := range cases {
		if got := levenshteinDistance(c.a, c.b); got != c.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestQuestionSimilarity(t *testing.T) {
	if s := questionSimilarity("What is a goroutine?", "what is a  Goroutine?"); s != 1 {
		t.Errorf("case and whitespace differences must normalize away, got %f", s)
	}
	if s := questionSimilarity("What is a goroutine?", "What is a goroutine?!"); s < 0.9 {
		t.Errorf("expected near-duplicate similarity, got %f", s)
	}
	if s := questionSimilarity("What is a goroutine?", "Explain how the garbage collector works."); s > 0.5 {
		t.Errorf("expected low similarity for unrelated questions, got %f", s)
	}
}

func TestDedupSet(t *testing.T) {
	s := newDedupSet(0.85, []string{"What is a goroutine?"})
	if s.Add("what is a goroutine??") {
		t.Error("near-duplicate of seeded question must be rejected")
	}
	if !s.Add("What do channels carry?") {
		t.Error("distinct question must be accepted")
	}
	if s.Add("What do channels carry???") {
		t.Error("near-duplicate of accepted question must be rejected")
	}
}

func TestParseQuestionsExtraction(t *testing.T) {
	raw := "Here you go:\n```json\n{\"questions\":[{\"question\":\"Q1?\",\"answer\":\"A1.\",\"difficulty\":\"hard\"}]}\n```"
	got, err := parseQuestions(raw, "easy")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 question, got %d", len(got))
	}
	if got[0].Difficulty != "easy" {
		t.Errorf("requested difficulty must override the label, got %q", got[0].Difficulty)
	}

	if _, err := parseQuestions("no json here", "easy"); err == nil {
		t.Error("expected error for reply without JSON")
	}
	if _, err := parseQuestions(`{"questions":[]}`, "easy"); err == nil {
		t.Error("expected error for empty question list")
	}
	if _, err := parseQuestions(`{"questions":[{"question":"","answer":""}]}`, "easy"); err == nil {
		t.Error("expected error when all questions are blank")
	}
}
