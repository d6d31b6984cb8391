package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const (
	// Target tokens per chunk and overlap carried between adjacent
	// chunks of the same section.
	chunkTokenBudget  = 1000
	chunkTokenOverlap = 100
)

// estimateTokens approximates token count as one token per four
// characters, rounding up.
func estimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// splitSentences walks the text and cuts after each sentence
// terminator. A trailing fragment without a terminator becomes its own
// sentence, and text with no terminators at all comes back as a single
// sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		tail := string(runes[start:])
		if strings.TrimSpace(tail) != "" {
			sentences = append(sentences, tail)
		}
	}
	if len(sentences) == 0 && strings.TrimSpace(text) != "" {
		sentences = []string{text}
	}
	return sentences
}

// overlapText takes whole sentences from the end of a chunk until the
// next sentence would exceed the overlap budget.
func overlapText(text string, overlapTokens int) string {
	targetChars := overlapTokens * 4
	sentences := splitSentences(text)
	overlap := ""
	for i := len(sentences) - 1; i >= 0; i-- {
		if len(overlap)+len(sentences[i]) > targetChars {
			break
		}
		overlap = sentences[i] + overlap
	}
	return overlap
}

type chunkDraft struct {
	Content    string
	TokenCount int
	Metadata   types.ChunkMetadata
}

// splitWithOverlap packs whole sentences into chunks up to the token
// budget, seeding each new chunk with overlap from the end of the
// previous one. Sentences are never split.
func splitWithOverlap(text string, chunkSize, overlap int) []chunkDraft {
	var chunks []chunkDraft
	current := ""
	currentTokens := 0

	for _, sentence := range splitSentences(text) {
		sentenceTokens := estimateTokens(sentence)
		if currentTokens+sentenceTokens > chunkSize && current != "" {
			chunks = append(chunks, chunkDraft{
				Content:    strings.TrimSpace(current),
				TokenCount: currentTokens,
			})
			current = overlapText(current, overlap) + sentence
			currentTokens = estimateTokens(current)
		} else {
			current += sentence
			currentTokens += sentenceTokens
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, chunkDraft{
			Content:    strings.TrimSpace(current),
			TokenCount: currentTokens,
		})
	}

	return chunks
}

// ChunkSections splits each section's text independently and stamps
// section metadata on every chunk. Chunk position within a section is
// 1-based.
func ChunkSections(text string, sections []types.Section) []chunkDraft {
	var all []chunkDraft
	for _, section := range sections {
		start := clampIndex(section.StartIndex, len(text))
		end := clampIndex(section.EndIndex, len(text))
		if end <= start {
			continue
		}
		sectionChunks := splitWithOverlap(text[start:end], chunkTokenBudget, chunkTokenOverlap)
		for i := range sectionChunks {
			sectionChunks[i].Metadata = types.ChunkMetadata{
				SectionTitle:       section.Title,
				SectionSummary:     section.Summary,
				ChunkOfSection:     i + 1,
				TotalSectionChunks: len(sectionChunks),
			}
		}
		all = append(all, sectionChunks...)
	}
	return all
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

// Chunker turns a handout's extracted text into stored retrieval chunks.
type Chunker struct {
	log       *logger.Logger
	handouts  repos.HandoutRepo
	chunks    repos.ChunkRepo
	extractor *Extractor
}

func NewChunker(log *logger.Logger, handouts repos.HandoutRepo, chunks repos.ChunkRepo, extractor *Extractor) *Chunker {
	return &Chunker{
		log:       log.With("service", "Chunker"),
		handouts:  handouts,
		chunks:    chunks,
		extractor: extractor,
	}
}

// ChunkHandout analyzes the handout's structure, splits it into chunks,
// and replaces any existing chunks for the handout in one transaction.
// Returns the number of chunks stored.
func (c *Chunker) ChunkHandout(ctx context.Context, handoutID uuid.UUID) (int, error) {
	handout, err := c.handouts.GetByID(ctx, nil, handoutID)
	if err != nil {
		return 0, err
	}
	if handout.ExtractedText == nil || strings.TrimSpace(*handout.ExtractedText) == "" {
		return 0, fmt.Errorf("handout %s has no extracted text", handoutID)
	}
	text := *handout.ExtractedText

	sections, err := c.extractor.AnalyzeStructure(ctx, text)
	if err != nil {
		return 0, err
	}

	drafts := ChunkSections(text, sections)

	records := make([]*types.HandoutChunk, 0, len(drafts))
	for i, draft := range drafts {
		meta, err := json.Marshal(draft.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		records = append(records, &types.HandoutChunk{
			HandoutID:  handoutID,
			ChunkIndex: i,
			Content:    draft.Content,
			TokenCount: draft.TokenCount,
			Metadata:   meta,
		})
	}

	if err := c.chunks.ReplaceForHandout(ctx, nil, handoutID, records); err != nil {
		return 0, err
	}

	c.log.Info("chunked handout", "handout_id", handoutID, "title", handout.Title, "chunks", len(records))
	return len(records), nil
}
