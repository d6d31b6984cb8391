package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const questionGenerationPrompt = `You are an expert California contractor license exam question writer.
Generate exam-style multiple choice questions from the following content.

Requirements:
- Create questions with 4 options (A, B, C, D)
- Mix of difficulties: easy (basic recall), medium (application), hard (analysis/synthesis)
- Questions should test practical knowledge for {LICENSE_TYPE} contractors
- Include detailed explanations for why the correct answer is right AND why others are wrong
- Reference specific codes, regulations, or standards when applicable
- Make distractors (wrong answers) plausible but clearly incorrect

License Track: {LICENSE_TYPE}
- License A (General Engineering): Highways, bridges, dams, pipelines, utilities
- License B (General Building): Residential & commercial structures, framing, concrete

Content to generate questions from:
---
{CHUNK_CONTENT}
---

Additional context from surrounding sections:
---
{SURROUNDING_CONTEXT}
---

Generate 3-5 questions in this exact JSON format (no markdown, just JSON):
[
  {
    "question": "Clear, specific question text?",
    "options": ["A. First option", "B. Second option", "C. Third option", "D. Fourth option"],
    "correct_answer": "A",
    "explanation": "A is correct because... B is incorrect because... C is incorrect because... D is incorrect because...",
    "difficulty": "easy",
    "topic_tags": ["relevant", "topic", "tags"]
  }
]`

// GeneratedQuestion is the model's answer shape before validation.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	TopicTags     []string `json:"topic_tags"`
}

// QuestionGenerator produces exam questions from stored chunks. All
// generated questions land unverified; a reviewer promotes them before
// they can appear in challenges.
type QuestionGenerator struct {
	log       *logger.Logger
	chunks    repos.ChunkRepo
	questions repos.QuestionRepo
	llm       anthropic.Client
	pacer     Pacer
}

func NewQuestionGenerator(log *logger.Logger, chunks repos.ChunkRepo, questions repos.QuestionRepo, llm anthropic.Client, pacer Pacer) *QuestionGenerator {
	return &QuestionGenerator{
		log:       log.With("service", "QuestionGenerator"),
		chunks:    chunks,
		questions: questions,
		llm:       llm,
		pacer:     pacer,
	}
}

// GenerateForChunk asks the model for questions about one chunk, with
// the neighboring chunks supplied as surrounding context. Unparseable or
// malformed items are dropped, not retried.
func (g *QuestionGenerator) GenerateForChunk(ctx context.Context, chunkID uuid.UUID, license string) ([]GeneratedQuestion, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: question generation requires ANTHROPIC_API_KEY", errors.ErrNoCredentials)
	}

	chunk, err := g.chunks.GetByID(ctx, nil, chunkID)
	if err != nil {
		return nil, err
	}

	neighbors, err := g.chunks.GetNeighbors(ctx, nil, chunk.HandoutID, chunk.ChunkIndex)
	if err != nil {
		return nil, err
	}
	neighborTexts := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		neighborTexts = append(neighborTexts, n.Content)
	}
	surrounding := strings.Join(neighborTexts, "\n---\n")

	prompt := questionGenerationPrompt
	prompt = strings.ReplaceAll(prompt, "{LICENSE_TYPE}", licenseLabel(license))
	prompt = strings.Replace(prompt, "{CHUNK_CONTENT}", chunk.Content, 1)
	prompt = strings.Replace(prompt, "{SURROUNDING_CONTEXT}", surrounding, 1)

	raw, err := g.llm.GenerateText(ctx, "", []anthropic.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	parsed, dropped := parseGeneratedQuestions(raw)
	if dropped > 0 {
		g.log.Warn("dropped malformed generated questions", "chunk_id", chunkID, "dropped", dropped, "kept", len(parsed))
	}
	return parsed, nil
}

func licenseLabel(license string) string {
	if license == types.LicenseBoth {
		return "A & B"
	}
	return "License " + license
}

// parseGeneratedQuestions decodes a model response and keeps only items
// that satisfy the output contract: exactly four options, a
// correct-answer letter A-D whose option carries that letter prefix, and
// a known difficulty. Returns the kept items and the dropped count.
func parseGeneratedQuestions(raw string) ([]GeneratedQuestion, int) {
	cleaned := stripCodeFences(raw)

	var items []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, 0
	}

	kept := make([]GeneratedQuestion, 0, len(items))
	dropped := 0
	for _, q := range items {
		if !validGeneratedQuestion(q) {
			dropped++
			continue
		}
		kept = append(kept, q)
	}
	return kept, dropped
}

func validGeneratedQuestion(q GeneratedQuestion) bool {
	if strings.TrimSpace(q.Question) == "" || len(q.Options) != 4 {
		return false
	}
	switch q.Difficulty {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
	default:
		return false
	}
	letter := strings.TrimSpace(q.CorrectAnswer)
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'D' {
		return false
	}
	option := q.Options[letter[0]-'A']
	return strings.HasPrefix(strings.TrimSpace(option), letter)
}

// GenerateForHandout walks every chunk of the handout, generating and
// storing questions per chunk. A failure on one chunk is logged and
// skipped; the walk continues. Returns the number stored.
func (g *QuestionGenerator) GenerateForHandout(ctx context.Context, handoutID uuid.UUID, license string) (int, error) {
	if g.llm == nil {
		return 0, fmt.Errorf("%w: question generation requires ANTHROPIC_API_KEY", errors.ErrNoCredentials)
	}

	chunks, err := g.chunks.GetByHandoutID(ctx, nil, handoutID)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks found for handout %s", handoutID)
	}

	total := 0
	for i, chunk := range chunks {
		generated, err := g.GenerateForChunk(ctx, chunk.ID, license)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			g.log.Warn("question generation failed for chunk", "chunk_id", chunk.ID, "error", err)
			continue
		}

		stored, err := g.storeGenerated(ctx, handoutID, chunk.ID, license, generated)
		if err != nil {
			g.log.Warn("failed to store generated questions", "chunk_id", chunk.ID, "error", err)
		}
		total += stored

		if i < len(chunks)-1 {
			if err := g.pacer.Pace(ctx); err != nil {
				return total, err
			}
		}
	}

	g.log.Info("generated questions for handout", "handout_id", handoutID, "questions", total)
	return total, nil
}

func (g *QuestionGenerator) storeGenerated(ctx context.Context, handoutID, chunkID uuid.UUID, license string, generated []GeneratedQuestion) (int, error) {
	if len(generated) == 0 {
		return 0, nil
	}

	records := make([]*types.Question, 0, len(generated))
	for _, q := range generated {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("marshal options: %w", err)
		}
		tags, err := json.Marshal(q.TopicTags)
		if err != nil {
			return 0, fmt.Errorf("marshal topic tags: %w", err)
		}
		hid := handoutID
		cid := chunkID
		records = append(records, &types.Question{
			HandoutID:     &hid,
			SourceChunkID: &cid,
			QuestionText:  q.Question,
			QuestionType:  "multiple_choice",
			Options:       datatypes.JSON(options),
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Difficulty:    q.Difficulty,
			LicenseType:   license,
			TopicTags:     datatypes.JSON(tags),
			IsAIGenerated: true,
			IsVerified:    false,
		})
	}

	if err := g.questions.Create(ctx, nil, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Regenerate produces a fresh candidate for an existing question from
// its source chunk. The candidate is returned, not stored; the reviewer
// decides whether it replaces the original.
func (g *QuestionGenerator) Regenerate(ctx context.Context, questionID uuid.UUID) (*GeneratedQuestion, error) {
	question, err := g.questions.GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, err
	}
	if question.SourceChunkID == nil {
		return nil, fmt.Errorf("%w: question %s has no source chunk", errors.ErrInvalidArgument, questionID)
	}

	generated, err := g.GenerateForChunk(ctx, *question.SourceChunkID, question.LicenseType)
	if err != nil {
		return nil, err
	}
	if len(generated) == 0 {
		return nil, fmt.Errorf("model produced no usable questions for chunk %s", *question.SourceChunkID)
	}
	return &generated[0], nil
}
