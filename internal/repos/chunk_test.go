package repos

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/repos/testutil"
	"github.com/goldseal/goldseal-backend/internal/types"
)

func seedHandout(t *testing.T, tx *gorm.DB, license string) *types.Handout {
	t.Helper()
	text := "Scaffolding over ten feet requires guardrails on all open sides."
	h := &types.Handout{
		ID:            uuid.New(),
		Title:         "Jobsite Safety Handout",
		FilePath:      "handouts/safety.pdf",
		FileType:      types.FileTypePDF,
		LicenseType:   license,
		ExtractedText: &text,
	}
	if err := tx.Create(h).Error; err != nil {
		t.Fatalf("seed handout: %v", err)
	}
	return h
}

func seedChunks(t *testing.T, tx *gorm.DB, repo ChunkRepo, handoutID uuid.UUID, n int) []*types.HandoutChunk {
	t.Helper()
	chunks := make([]*types.HandoutChunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, &types.HandoutChunk{
			ID:         uuid.New(),
			HandoutID:  handoutID,
			ChunkIndex: i,
			Content:    fmt.Sprintf("chunk %d content about scaffolding and guardrails", i),
			TokenCount: 10,
		})
	}
	if err := repo.Create(context.Background(), tx, chunks); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
	return chunks
}

func TestChunkRepoReplaceForHandout(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewChunkRepo(gdb, testutil.Logger(t))
	ctx := context.Background()

	h := seedHandout(t, tx, types.LicenseBoth)
	seedChunks(t, tx, repo, h.ID, 3)

	replacement := []*types.HandoutChunk{
		{ID: uuid.New(), HandoutID: h.ID, ChunkIndex: 0, Content: "fresh chunk zero", TokenCount: 4},
		{ID: uuid.New(), HandoutID: h.ID, ChunkIndex: 1, Content: "fresh chunk one", TokenCount: 4},
	}
	if err := repo.ReplaceForHandout(ctx, tx, h.ID, replacement); err != nil {
		t.Fatalf("ReplaceForHandout: %v", err)
	}

	got, err := repo.GetByHandoutID(ctx, tx, h.ID)
	if err != nil {
		t.Fatalf("GetByHandoutID: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks after replace, got %d", len(got))
	}
	for i, c := range got {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.Content[:5] != "fresh" {
			t.Fatalf("stale chunk survived replace: %q", c.Content)
		}
	}
}

func TestChunkRepoEmbeddingLifecycle(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewChunkRepo(gdb, testutil.Logger(t))
	ctx := context.Background()

	h := seedHandout(t, tx, types.LicenseA)
	chunks := seedChunks(t, tx, repo, h.ID, 2)

	missing, err := repo.GetMissingEmbedding(ctx, tx, h.ID)
	if err != nil {
		t.Fatalf("GetMissingEmbedding: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 unembedded chunks, got %d", len(missing))
	}

	if err := repo.UpdateEmbedding(ctx, tx, chunks[0].ID, []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("UpdateEmbedding: %v", err)
	}

	missing, err = repo.GetMissingEmbedding(ctx, tx, h.ID)
	if err != nil {
		t.Fatalf("GetMissingEmbedding after update: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != chunks[1].ID {
		t.Fatalf("expected only the second chunk to remain unembedded")
	}

	embedded, err := repo.CountEmbeddedByHandoutID(ctx, tx, h.ID)
	if err != nil {
		t.Fatalf("CountEmbeddedByHandoutID: %v", err)
	}
	if embedded != 1 {
		t.Fatalf("expected 1 embedded chunk, got %d", embedded)
	}

	// Rerunning on the already-embedded chunk set is a no-op path for the
	// embedder: selection excludes embedded rows.
	stored, err := repo.GetByID(ctx, tx, chunks[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	emb, err := ParseEmbeddingJSON(stored.Embedding)
	if err != nil {
		t.Fatalf("ParseEmbeddingJSON: %v", err)
	}
	if len(emb) != 3 || emb[1] != 0.2 {
		t.Fatalf("stored embedding mismatch: %v", emb)
	}
}

func TestChunkRepoTextSearchScopesLicense(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewChunkRepo(gdb, testutil.Logger(t))
	ctx := context.Background()

	hA := seedHandout(t, tx, types.LicenseA)
	hBoth := seedHandout(t, tx, types.LicenseBoth)
	seedChunks(t, tx, repo, hA.ID, 1)
	seedChunks(t, tx, repo, hBoth.ID, 1)

	hits, err := repo.TextSearch(ctx, tx, "scaffolding guardrails", 10, types.LicenseB)
	if err != nil {
		t.Fatalf("TextSearch: %v", err)
	}
	for _, hit := range hits {
		if hit.Chunk.HandoutID == hA.ID {
			t.Fatalf("license A chunk leaked into license B search")
		}
	}

	hits, err = repo.TextSearch(ctx, tx, "scaffolding guardrails", 10, types.LicenseA)
	if err != nil {
		t.Fatalf("TextSearch license A: %v", err)
	}
	if len(hits) < 2 {
		t.Fatalf("expected A search to see both A and both-scoped chunks, got %d hits", len(hits))
	}
}
