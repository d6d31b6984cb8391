package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const (
	StepExtract  = "extract"
	StepChunk    = "chunk"
	StepEmbed    = "embed"
	StepGenerate = "generate"
)

// AllSteps is the default pipeline order.
var AllSteps = []string{StepExtract, StepChunk, StepEmbed, StepGenerate}

// RunResult reports per-step outcomes of a pipeline run. Steps holds one
// human-readable line per executed step; a failed step records its error
// there and the run continues with the next step.
type RunResult struct {
	HandoutID     uuid.UUID `json:"handoutId"`
	Title         string    `json:"title"`
	Steps         []string  `json:"steps"`
	ChunkCount    int       `json:"chunkCount,omitempty"`
	EmbedCount    int       `json:"embedCount,omitempty"`
	QuestionCount int       `json:"questionCount,omitempty"`
}

// Status summarizes how far a handout has progressed through the
// pipeline.
type Status struct {
	Handout     *types.Handout `json:"handout"`
	Extracted   bool           `json:"extracted"`
	Chunks      int64          `json:"chunks"`
	Embeddings  int64          `json:"embeddings"`
	Questions   int64          `json:"questions"`
	IsProcessed bool           `json:"isProcessed"`
}

// Service orchestrates the per-document pipeline: extract, chunk, embed,
// generate. Each step is independently runnable so operators can rerun a
// single stage.
type Service struct {
	log       *logger.Logger
	handouts  repos.HandoutRepo
	chunks    repos.ChunkRepo
	questions repos.QuestionRepo
	extractor *Extractor
	chunker   *Chunker
	embedder  *Embedder
	generator *QuestionGenerator
}

func NewService(
	log *logger.Logger,
	handouts repos.HandoutRepo,
	chunks repos.ChunkRepo,
	questions repos.QuestionRepo,
	extractor *Extractor,
	chunker *Chunker,
	embedder *Embedder,
	generator *QuestionGenerator,
) *Service {
	return &Service{
		log:       log.With("service", "Pipeline"),
		handouts:  handouts,
		chunks:    chunks,
		questions: questions,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
	}
}

// Run executes the requested steps in pipeline order. A step failure is
// recorded in the result and does not stop later steps; downstream steps
// simply find less to do. The handout is marked processed at the end
// regardless, so partial runs surface in the status counts rather than
// blocking the record.
func (s *Service) Run(ctx context.Context, handoutID uuid.UUID, steps []string) (*RunResult, error) {
	handout, err := s.handouts.GetByID(ctx, nil, handoutID)
	if err != nil {
		return nil, err
	}

	if len(steps) == 0 {
		steps = AllSteps
	}
	requested := make(map[string]bool, len(steps))
	for _, step := range steps {
		requested[step] = true
	}

	result := &RunResult{
		HandoutID: handoutID,
		Title:     handout.Title,
		Steps:     []string{},
	}

	if requested[StepExtract] {
		if err := s.extractor.ProcessHandout(ctx, handoutID); err != nil {
			s.log.Error("extract step failed", "handout_id", handoutID, "error", err)
			result.Steps = append(result.Steps, fmt.Sprintf("extract: failed - %v", err))
		} else {
			result.Steps = append(result.Steps, "extract: success")
		}
	}

	if requested[StepChunk] {
		count, err := s.chunker.ChunkHandout(ctx, handoutID)
		if err != nil {
			s.log.Error("chunk step failed", "handout_id", handoutID, "error", err)
			result.Steps = append(result.Steps, fmt.Sprintf("chunk: failed - %v", err))
		} else {
			result.ChunkCount = count
			result.Steps = append(result.Steps, fmt.Sprintf("chunk: %d chunks created", count))
		}
	}

	if requested[StepEmbed] {
		count, err := s.embedder.EmbedHandout(ctx, handoutID)
		if err != nil {
			s.log.Error("embed step failed", "handout_id", handoutID, "error", err)
			result.Steps = append(result.Steps, fmt.Sprintf("embed: failed - %v", err))
		} else {
			result.EmbedCount = count
			result.Steps = append(result.Steps, fmt.Sprintf("embed: %d embeddings generated", count))
		}
	}

	if requested[StepGenerate] {
		count, err := s.generator.GenerateForHandout(ctx, handoutID, handout.LicenseType)
		if err != nil {
			s.log.Error("generate step failed", "handout_id", handoutID, "error", err)
			result.Steps = append(result.Steps, fmt.Sprintf("generate: failed - %v", err))
		} else {
			result.QuestionCount = count
			result.Steps = append(result.Steps, fmt.Sprintf("generate: %d questions generated", count))
		}
	}

	if err := s.handouts.MarkProcessed(ctx, nil, handoutID); err != nil {
		return result, err
	}

	return result, nil
}

// GetStatus reports extraction state and chunk, embedding, and question
// counts for a handout.
func (s *Service) GetStatus(ctx context.Context, handoutID uuid.UUID) (*Status, error) {
	handout, err := s.handouts.GetByID(ctx, nil, handoutID)
	if err != nil {
		return nil, err
	}

	chunkCount, err := s.chunks.CountByHandoutID(ctx, nil, handoutID)
	if err != nil {
		return nil, err
	}
	embeddedCount, err := s.chunks.CountEmbeddedByHandoutID(ctx, nil, handoutID)
	if err != nil {
		return nil, err
	}
	questionCount, err := s.questions.CountByHandoutID(ctx, nil, handoutID)
	if err != nil {
		return nil, err
	}

	return &Status{
		Handout:     handout,
		Extracted:   handout.ExtractedText != nil && *handout.ExtractedText != "",
		Chunks:      chunkCount,
		Embeddings:  embeddedCount,
		Questions:   questionCount,
		IsProcessed: handout.IsProcessed,
	}, nil
}
