package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

type fakeLLM struct {
	textResponse  string
	textErr       error
	imageResponse string
	lastPrompt    string
}

func (f *fakeLLM) GenerateText(ctx context.Context, system string, messages []anthropic.Message) (string, error) {
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	return f.textResponse, f.textErr
}

func (f *fakeLLM) GenerateTextWithImage(ctx context.Context, system string, prompt string, image []byte, mediaType string) (string, error) {
	return f.imageResponse, nil
}

func TestAnalyzeStructureWithoutModel(t *testing.T) {
	e := NewExtractor(logger.NewNop(), nil, nil, nil, nil)
	text := strings.Repeat("Contractor law content. ", 30)

	sections, err := e.AnalyzeStructure(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	s := sections[0]
	if s.Title != "Document Content" {
		t.Errorf("title = %q", s.Title)
	}
	if s.StartIndex != 0 || s.EndIndex != len(text) {
		t.Errorf("range = [%d,%d), want [0,%d)", s.StartIndex, s.EndIndex, len(text))
	}
	if s.Summary != text[:200] {
		t.Errorf("summary = %q", s.Summary)
	}
}

func TestAnalyzeStructureParsesModelSections(t *testing.T) {
	llm := &fakeLLM{textResponse: "```json\n" + `[
		{"title": "Licensing Basics", "startIndex": 0, "endIndex": 40, "summary": "Who needs a license."},
		{"title": "Bond Requirements", "startIndex": 40, "endIndex": 80, "summary": "Bond amounts."}
	]` + "\n```"}
	e := NewExtractor(logger.NewNop(), nil, nil, llm, nil)

	text := strings.Repeat("x", 80)
	sections, err := e.AnalyzeStructure(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Title != "Licensing Basics" || sections[1].Title != "Bond Requirements" {
		t.Errorf("titles = %q, %q", sections[0].Title, sections[1].Title)
	}
}

func TestAnalyzeStructureClampsAndDropsBadSections(t *testing.T) {
	llm := &fakeLLM{textResponse: `[
		{"title": "Oversized", "startIndex": 0, "endIndex": 99999, "summary": "clamped"},
		{"title": "Inverted", "startIndex": 50, "endIndex": 10, "summary": "dropped"},
		{"title": "", "startIndex": 0, "endIndex": 20, "summary": "untitled, dropped"}
	]`}
	e := NewExtractor(logger.NewNop(), nil, nil, llm, nil)

	text := strings.Repeat("x", 100)
	sections, err := e.AnalyzeStructure(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Title != "Oversized" || sections[0].EndIndex != len(text) {
		t.Errorf("kept section = %+v", sections[0])
	}
}

func TestAnalyzeStructureFallsBackOnGarbage(t *testing.T) {
	llm := &fakeLLM{textResponse: "I could not produce JSON, sorry."}
	e := NewExtractor(logger.NewNop(), nil, nil, llm, nil)

	text := strings.Repeat("y", 300)
	sections, err := e.AnalyzeStructure(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 1 || sections[0].Title != "Document Content" {
		t.Fatalf("expected single-section fallback, got %+v", sections)
	}
}

func TestAnalyzeStructureTruncatesPromptInput(t *testing.T) {
	llm := &fakeLLM{textResponse: "[]"}
	e := NewExtractor(logger.NewNop(), nil, nil, llm, nil)

	text := strings.Repeat("z", structureAnalysisMaxChars+5000)
	if _, err := e.AnalyzeStructure(context.Background(), text); err != nil {
		t.Fatal(err)
	}
	if strings.Count(llm.lastPrompt, "z") > structureAnalysisMaxChars {
		t.Errorf("prompt carries %d document chars, cap is %d",
			strings.Count(llm.lastPrompt, "z"), structureAnalysisMaxChars)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"[1]", "[1]"},
		{"  [1]  ", "[1]"},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestImageMediaTypeDefaultsToPNG(t *testing.T) {
	if got := imageMediaType([]byte("not an image")); got != "image/png" {
		t.Errorf("fallback media type = %q", got)
	}
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	if got := imageMediaType(png); got != "image/png" {
		t.Errorf("png media type = %q", got)
	}
}
