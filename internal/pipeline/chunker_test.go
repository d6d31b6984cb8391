package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/goldseal/goldseal-backend/internal/types"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tc := range cases {
		if got := estimateTokens(tc.text); got != tc.want {
			t.Errorf("estimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"three terminated", "One. Two! Three?", 3},
		{"trailing fragment", "One. Two without end", 2},
		{"no terminators", "just a fragment of text", 1},
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.text)
			if len(got) != tc.want {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, tc.want)
			}
			if strings.Join(got, "") != tc.text && tc.want > 0 {
				t.Errorf("sentences do not reconstruct input: %q", got)
			}
		})
	}
}

func TestSplitWithOverlapRespectsBudget(t *testing.T) {
	// 120 sentences of ~25 tokens each forces multiple chunks.
	sentence := strings.Repeat("word ", 20) + "end."
	text := strings.Repeat(sentence, 120)

	chunks := splitWithOverlap(text, chunkTokenBudget, chunkTokenOverlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	sentenceTokens := estimateTokens(sentence)
	for i, c := range chunks {
		if c.Content == "" {
			t.Errorf("chunk %d is empty", i)
		}
		// A chunk may exceed the budget only by the sentence that
		// tipped it over.
		if c.TokenCount > chunkTokenBudget+sentenceTokens {
			t.Errorf("chunk %d has %d tokens, budget %d", i, c.TokenCount, chunkTokenBudget)
		}
	}
}

func TestSplitWithOverlapCarriesTail(t *testing.T) {
	sentence := strings.Repeat("word ", 20) + "end."
	text := strings.Repeat(sentence, 120)

	chunks := splitWithOverlap(text, chunkTokenBudget, chunkTokenOverlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Content[len(chunks[i-1].Content)-len(sentence)+1:]
		if !strings.Contains(chunks[i].Content, strings.TrimSpace(prevTail)) {
			t.Errorf("chunk %d does not overlap with the end of chunk %d", i, i-1)
		}
	}
}

func TestSplitWithOverlapSingleChunk(t *testing.T) {
	text := "Short document. Only two sentences."
	chunks := splitWithOverlap(text, chunkTokenBudget, chunkTokenOverlap)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("content = %q, want %q", chunks[0].Content, text)
	}
}

func TestChunkSectionsMetadata(t *testing.T) {
	intro := "Intro sentence one. Intro sentence two."
	body := strings.Repeat(strings.Repeat("word ", 20)+"end. ", 120)
	text := intro + body

	sections := []types.Section{
		{Title: "Introduction", Summary: "The intro.", StartIndex: 0, EndIndex: len(intro)},
		{Title: "Body", Summary: "The body.", StartIndex: len(intro), EndIndex: len(text)},
	}

	chunks := ChunkSections(text, sections)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	if chunks[0].Metadata.SectionTitle != "Introduction" {
		t.Errorf("first chunk section = %q, want Introduction", chunks[0].Metadata.SectionTitle)
	}
	if chunks[0].Metadata.ChunkOfSection != 1 || chunks[0].Metadata.TotalSectionChunks != 1 {
		t.Errorf("intro chunk position = %d/%d, want 1/1",
			chunks[0].Metadata.ChunkOfSection, chunks[0].Metadata.TotalSectionChunks)
	}

	bodyChunks := chunks[1:]
	for i, c := range bodyChunks {
		if c.Metadata.SectionTitle != "Body" {
			t.Fatalf("body chunk %d carries section %q", i, c.Metadata.SectionTitle)
		}
		if c.Metadata.ChunkOfSection != i+1 {
			t.Errorf("body chunk %d position = %d, want %d", i, c.Metadata.ChunkOfSection, i+1)
		}
		if c.Metadata.TotalSectionChunks != len(bodyChunks) {
			t.Errorf("body chunk %d total = %d, want %d", i, c.Metadata.TotalSectionChunks, len(bodyChunks))
		}
	}
}

func TestChunkSectionsSkipsEmptyRanges(t *testing.T) {
	text := "Some content here."
	sections := []types.Section{
		{Title: "Empty", StartIndex: 5, EndIndex: 5},
		{Title: "Inverted", StartIndex: 10, EndIndex: 2},
		{Title: "Out of bounds", StartIndex: 0, EndIndex: 5000},
	}
	chunks := ChunkSections(text, sections)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Metadata.SectionTitle != "Out of bounds" {
		t.Errorf("kept section = %q", chunks[0].Metadata.SectionTitle)
	}
	if chunks[0].Content != text {
		t.Errorf("clamped content = %q, want %q", chunks[0].Content, text)
	}
}

func TestChunkMetadataJSONShape(t *testing.T) {
	meta := types.ChunkMetadata{
		SectionTitle:       "Safety",
		SectionSummary:     "Covers jobsite safety.",
		ChunkOfSection:     2,
		TotalSectionChunks: 4,
	}
	b, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	for _, key := range []string{"sectionTitle", "sectionSummary", "chunkOfSection", "totalSectionChunks"} {
		if !strings.Contains(got, key) {
			t.Errorf("metadata JSON missing key %q: %s", key, got)
		}
	}
}
