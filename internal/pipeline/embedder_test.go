package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/pkg/throttle"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type fakeChunkStore struct {
	repos.ChunkRepo

	pending  []*types.HandoutChunk
	embedded map[uuid.UUID][]float32
}

func (f *fakeChunkStore) GetMissingEmbedding(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) ([]*types.HandoutChunk, error) {
	return f.pending, nil
}

func (f *fakeChunkStore) GetAnyMissingEmbedding(ctx context.Context, tx *gorm.DB, limit int) ([]*types.HandoutChunk, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeChunkStore) UpdateEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []float32) error {
	if f.embedded == nil {
		f.embedded = make(map[uuid.UUID][]float32)
	}
	f.embedded[id] = embedding
	return nil
}

type fakeEmbedProvider struct {
	calls   int
	failOn  int // 1-based call number that fails; 0 never fails
	batches [][]string
}

func (f *fakeEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, fmt.Errorf("provider unavailable")
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedProvider) Model() string { return "fake-embed" }

func makePendingChunks(n int) []*types.HandoutChunk {
	chunks := make([]*types.HandoutChunk, n)
	for i := range chunks {
		chunks[i] = &types.HandoutChunk{
			ID:      uuid.New(),
			Content: fmt.Sprintf("chunk %d", i),
		}
	}
	return chunks
}

func TestEmbedHandoutBatches(t *testing.T) {
	store := &fakeChunkStore{pending: makePendingChunks(250)}
	provider := &fakeEmbedProvider{}
	e := NewEmbedder(logger.NewNop(), store, provider, throttle.None())

	done, err := e.EmbedHandout(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if done != 250 {
		t.Errorf("embedded %d chunks, want 250", done)
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3 batches", provider.calls)
	}
	if len(provider.batches[0]) != 100 || len(provider.batches[2]) != 50 {
		t.Errorf("batch sizes = %d,%d,%d", len(provider.batches[0]), len(provider.batches[1]), len(provider.batches[2]))
	}
	if len(store.embedded) != 250 {
		t.Errorf("stored %d embeddings, want 250", len(store.embedded))
	}
}

func TestEmbedHandoutProviderFailureAborts(t *testing.T) {
	store := &fakeChunkStore{pending: makePendingChunks(250)}
	provider := &fakeEmbedProvider{failOn: 2}
	e := NewEmbedder(logger.NewNop(), store, provider, throttle.None())

	done, err := e.EmbedHandout(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if done != 100 {
		t.Errorf("embedded %d before failure, want 100", done)
	}
	// The first batch's vectors survive so a rerun picks up the rest.
	if len(store.embedded) != 100 {
		t.Errorf("stored %d embeddings, want 100", len(store.embedded))
	}
}

func TestEmbedHandoutNothingPending(t *testing.T) {
	store := &fakeChunkStore{}
	provider := &fakeEmbedProvider{}
	e := NewEmbedder(logger.NewNop(), store, provider, throttle.None())

	done, err := e.EmbedHandout(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if done != 0 || provider.calls != 0 {
		t.Errorf("done=%d calls=%d, want no work", done, provider.calls)
	}
}

func TestEmbedHandoutNoProvider(t *testing.T) {
	e := NewEmbedder(logger.NewNop(), &fakeChunkStore{}, nil, throttle.None())
	_, err := e.EmbedHandout(context.Background(), uuid.New())
	if !errors.Is(err, pkgerrors.ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestEmbedAllPendingHonorsLimit(t *testing.T) {
	store := &fakeChunkStore{pending: makePendingChunks(40)}
	provider := &fakeEmbedProvider{}
	e := NewEmbedder(logger.NewNop(), store, provider, throttle.None())

	done, err := e.EmbedAllPending(context.Background(), 25)
	if err != nil {
		t.Fatal(err)
	}
	if done != 25 {
		t.Errorf("embedded %d chunks, want 25", done)
	}
}
