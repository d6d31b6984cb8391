package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/clients/embeddings"
	"github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const embedBatchSize = 100

// Embedder fills in missing chunk embeddings. Only chunks whose
// embedding column is still null are selected, so re-running it is
// cheap and never re-embeds existing vectors.
type Embedder struct {
	log      *logger.Logger
	chunks   repos.ChunkRepo
	provider embeddings.Provider
	pacer    Pacer
}

// Pacer spaces out provider calls between batches.
type Pacer interface {
	Pace(ctx context.Context) error
}

func NewEmbedder(log *logger.Logger, chunks repos.ChunkRepo, provider embeddings.Provider, pacer Pacer) *Embedder {
	return &Embedder{
		log:      log.With("service", "Embedder"),
		chunks:   chunks,
		provider: provider,
		pacer:    pacer,
	}
}

// EmbedHandout embeds every chunk of the handout that is still missing
// an embedding. Returns the number of chunks embedded.
func (e *Embedder) EmbedHandout(ctx context.Context, handoutID uuid.UUID) (int, error) {
	if e.provider == nil {
		return 0, fmt.Errorf("%w: set VOYAGE_API_KEY or OPENAI_API_KEY", errors.ErrNoCredentials)
	}

	pending, err := e.chunks.GetMissingEmbedding(ctx, nil, handoutID)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	done, err := e.embedChunks(ctx, pending)
	if err != nil {
		return done, err
	}

	e.log.Info("embedded handout chunks", "handout_id", handoutID, "chunks", done, "model", e.provider.Model())
	return done, nil
}

// EmbedAllPending sweeps across all handouts for chunks missing
// embeddings, up to limit. Used by the backfill cron after a provider
// outage or key rotation.
func (e *Embedder) EmbedAllPending(ctx context.Context, limit int) (int, error) {
	if e.provider == nil {
		return 0, fmt.Errorf("%w: set VOYAGE_API_KEY or OPENAI_API_KEY", errors.ErrNoCredentials)
	}

	pending, err := e.chunks.GetAnyMissingEmbedding(ctx, nil, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	done, err := e.embedChunks(ctx, pending)
	if err != nil {
		return done, err
	}

	e.log.Info("embedded pending chunks", "chunks", done, "model", e.provider.Model())
	return done, nil
}

// embedChunks processes in fixed-size batches. A provider failure
// aborts the run; chunks already embedded keep their vectors, the rest
// stay null and get picked up next run.
func (e *Embedder) embedChunks(ctx context.Context, pending []*types.HandoutChunk) (int, error) {
	done := 0
	for start := 0; start < len(pending); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := e.provider.Embed(ctx, texts)
		if err != nil {
			return done, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return done, fmt.Errorf("provider returned %d embeddings for %d inputs", len(vectors), len(batch))
		}

		for i, chunk := range batch {
			if err := e.chunks.UpdateEmbedding(ctx, nil, chunk.ID, vectors[i]); err != nil {
				return done, err
			}
			done++
		}

		if end < len(pending) {
			if err := e.pacer.Pace(ctx); err != nil {
				return done, err
			}
		}
	}
	return done, nil
}
