package pipeline

import (
	"testing"
)

func wellFormedQuestion() string {
	return `{
		"question": "What is the minimum bond amount?",
		"options": ["A. $10,000", "B. $15,000", "C. $25,000", "D. $50,000"],
		"correct_answer": "B",
		"explanation": "B is correct because the statute sets $15,000.",
		"difficulty": "easy",
		"topic_tags": ["bonds"]
	}`
}

func TestParseGeneratedQuestionsKeepsValid(t *testing.T) {
	raw := "```json\n[" + wellFormedQuestion() + "]\n```"
	kept, dropped := parseGeneratedQuestions(raw)
	if len(kept) != 1 || dropped != 0 {
		t.Fatalf("kept=%d dropped=%d, want 1/0", len(kept), dropped)
	}
	q := kept[0]
	if q.CorrectAnswer != "B" || q.Difficulty != "easy" {
		t.Errorf("parsed question = %+v", q)
	}
}

func TestParseGeneratedQuestionsDropsMalformed(t *testing.T) {
	cases := []struct {
		name string
		item string
	}{
		{"three options", `{"question": "Q?", "options": ["A. a", "B. b", "C. c"], "correct_answer": "A", "difficulty": "easy"}`},
		{"five options", `{"question": "Q?", "options": ["A. a", "B. b", "C. c", "D. d", "E. e"], "correct_answer": "A", "difficulty": "easy"}`},
		{"answer out of range", `{"question": "Q?", "options": ["A. a", "B. b", "C. c", "D. d"], "correct_answer": "E", "difficulty": "easy"}`},
		{"answer letter mismatch", `{"question": "Q?", "options": ["A. a", "B. b", "C. c", "X. d"], "correct_answer": "D", "difficulty": "easy"}`},
		{"unknown difficulty", `{"question": "Q?", "options": ["A. a", "B. b", "C. c", "D. d"], "correct_answer": "A", "difficulty": "brutal"}`},
		{"empty question", `{"question": " ", "options": ["A. a", "B. b", "C. c", "D. d"], "correct_answer": "A", "difficulty": "easy"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kept, dropped := parseGeneratedQuestions("[" + tc.item + "," + wellFormedQuestion() + "]")
			if len(kept) != 1 || dropped != 1 {
				t.Errorf("kept=%d dropped=%d, want 1/1", len(kept), dropped)
			}
		})
	}
}

func TestParseGeneratedQuestionsUnparseableResponse(t *testing.T) {
	kept, dropped := parseGeneratedQuestions("Sure! Here are some questions you might like.")
	if kept != nil || dropped != 0 {
		t.Errorf("kept=%v dropped=%d, want nil/0", kept, dropped)
	}
}

func TestLicenseLabel(t *testing.T) {
	cases := map[string]string{
		"A":    "License A",
		"B":    "License B",
		"both": "A & B",
	}
	for license, want := range cases {
		if got := licenseLabel(license); got != want {
			t.Errorf("licenseLabel(%q) = %q, want %q", license, got, want)
		}
	}
}
