package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

func hit(id uuid.UUID, title string) repos.ChunkHit {
	return repos.ChunkHit{
		Chunk:        &types.HandoutChunk{ID: id, Content: "content for " + title},
		HandoutTitle: title,
	}
}

func TestFuseRRFSharedItemOutranksSingles(t *testing.T) {
	shared := uuid.New()
	vecOnly := uuid.New()
	lexOnly := uuid.New()

	vector := []repos.ChunkHit{hit(vecOnly, "vec"), hit(shared, "shared")}
	lexical := []repos.ChunkHit{hit(lexOnly, "lex"), hit(shared, "shared")}

	fused := fuseRRF(vector, lexical)
	if len(fused) != 3 {
		t.Fatalf("got %d fused hits, want 3", len(fused))
	}
	// shared is rank 1 in both legs: 2/62 beats 1/61.
	if fused[0].Chunk.ID != shared {
		t.Errorf("top hit = %s, want the shared chunk", fused[0].HandoutTitle)
	}
}

func TestFuseRRFExactScores(t *testing.T) {
	a := uuid.New()
	list := []repos.ChunkHit{hit(a, "a")}

	fused := fuseRRF(list, list)
	if len(fused) != 1 {
		t.Fatalf("got %d hits, want 1", len(fused))
	}
	want := 2.0 / 61.0
	if diff := fused[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("score = %v, want %v", fused[0].Score, want)
	}
}

func TestFuseRRFRankOrderWithinLeg(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	leg := []repos.ChunkHit{hit(ids[0], "first"), hit(ids[1], "second"), hit(ids[2], "third")}

	fused := fuseRRF(leg)
	for i, id := range ids {
		if fused[i].Chunk.ID != id {
			t.Errorf("position %d = %s, want original leg order preserved", i, fused[i].HandoutTitle)
		}
	}
}

func TestFuseRRFEmptyLegs(t *testing.T) {
	if got := fuseRRF(nil, nil); len(got) != 0 {
		t.Errorf("fused %d hits from empty legs", len(got))
	}

	a := uuid.New()
	fused := fuseRRF(nil, []repos.ChunkHit{hit(a, "a")})
	if len(fused) != 1 || fused[0].Chunk.ID != a {
		t.Errorf("single-leg fusion = %+v", fused)
	}
}

func TestSearchTerms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"what is a mechanics lien", "what mechanics lien"},
		{"a an to of", ""},
		{"  rebar   spacing  ", "rebar spacing"},
	}
	for _, tc := range cases {
		if got := searchTerms(tc.in); got != tc.want {
			t.Errorf("searchTerms(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type fakeChunkSearcher struct {
	vectorHits  []repos.ChunkHit
	lexicalHits []repos.ChunkHit
	vectorErr   error
	lexicalErr  error
	lexQuery    string
}

func (f *fakeChunkSearcher) MatchByEmbedding(ctx context.Context, tx *gorm.DB, queryEmbedding []float32, threshold float64, limit int, license string) ([]repos.ChunkHit, error) {
	return f.vectorHits, f.vectorErr
}

func (f *fakeChunkSearcher) TextSearch(ctx context.Context, tx *gorm.DB, query string, limit int, license string) ([]repos.ChunkHit, error) {
	f.lexQuery = query
	return f.lexicalHits, f.lexicalErr
}

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fakeQueryEmbedder) Model() string { return "fake-embed" }

func TestSearchWithoutProviderUsesLexicalOnly(t *testing.T) {
	store := &fakeChunkSearcher{
		lexicalHits: []repos.ChunkHit{hit(uuid.New(), "lexical")},
	}
	s := NewSearcher(logger.NewNop(), store, nil)

	hits, err := s.Search(context.Background(), "mechanics lien filing deadline", "B", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].HandoutTitle != "lexical" {
		t.Fatalf("hits = %+v", hits)
	}
	if store.lexQuery != "mechanics lien filing deadline" {
		t.Errorf("lexical query = %q", store.lexQuery)
	}
}

func TestSearchFusesBothLegs(t *testing.T) {
	shared := uuid.New()
	store := &fakeChunkSearcher{
		vectorHits:  []repos.ChunkHit{hit(uuid.New(), "vec"), hit(shared, "shared")},
		lexicalHits: []repos.ChunkHit{hit(shared, "shared")},
	}
	s := NewSearcher(logger.NewNop(), store, fakeQueryEmbedder{})

	hits, err := s.Search(context.Background(), "soil compaction testing", "A", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Chunk.ID != shared {
		t.Errorf("top hit = %s, want shared chunk first", hits[0].HandoutTitle)
	}
}

func TestSearchLegErrorDegrades(t *testing.T) {
	store := &fakeChunkSearcher{
		vectorErr:   fmt.Errorf("vector index cold"),
		lexicalHits: []repos.ChunkHit{hit(uuid.New(), "lexical")},
	}
	s := NewSearcher(logger.NewNop(), store, fakeQueryEmbedder{})

	hits, err := s.Search(context.Background(), "license bond amounts", "B", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].HandoutTitle != "lexical" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchTruncatesToLimit(t *testing.T) {
	var lex []repos.ChunkHit
	for i := 0; i < 8; i++ {
		lex = append(lex, hit(uuid.New(), fmt.Sprintf("h%d", i)))
	}
	store := &fakeChunkSearcher{lexicalHits: lex}
	s := NewSearcher(logger.NewNop(), store, nil)

	hits, err := s.Search(context.Background(), "concrete slump testing", "B", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits))
	}
}
