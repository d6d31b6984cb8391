package rag

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/clients/embeddings"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
)

const (
	// Per-leg candidate depth before fusion.
	legLimit = 10

	// Minimum cosine similarity for the vector leg.
	matchThreshold = 0.7

	// Reciprocal rank fusion constant.
	rrfK = 60
)

// ChunkSearcher is the slice of the chunk repo the searcher needs.
type ChunkSearcher interface {
	MatchByEmbedding(ctx context.Context, tx *gorm.DB, queryEmbedding []float32, threshold float64, limit int, license string) ([]repos.ChunkHit, error)
	TextSearch(ctx context.Context, tx *gorm.DB, query string, limit int, license string) ([]repos.ChunkHit, error)
}

// Searcher runs hybrid retrieval: a vector leg and a lexical leg in
// parallel, fused by reciprocal rank. Either leg may come back empty;
// a leg error degrades that leg rather than failing the search.
type Searcher struct {
	log      *logger.Logger
	chunks   ChunkSearcher
	provider embeddings.Provider
}

func NewSearcher(log *logger.Logger, chunks ChunkSearcher, provider embeddings.Provider) *Searcher {
	return &Searcher{
		log:      log.With("service", "Searcher"),
		chunks:   chunks,
		provider: provider,
	}
}

// Search returns the top fused hits for a query, scoped to a license
// track. Without an embedding provider the vector leg is skipped and
// results come from full-text search alone.
func (s *Searcher) Search(ctx context.Context, query string, license string, limit int) ([]repos.ChunkHit, error) {
	var vectorHits, lexicalHits []repos.ChunkHit

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if s.provider == nil {
			return nil
		}
		hits, err := s.vectorLeg(gctx, query, license)
		if err != nil {
			s.log.Warn("vector search leg failed", "error", err)
			return nil
		}
		vectorHits = hits
		return nil
	})

	g.Go(func() error {
		terms := searchTerms(query)
		if terms == "" {
			return nil
		}
		hits, err := s.chunks.TextSearch(gctx, nil, terms, legLimit, license)
		if err != nil {
			s.log.Warn("lexical search leg failed", "error", err)
			return nil
		}
		lexicalHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(vectorHits, lexicalHits)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

func (s *Searcher) vectorLeg(ctx context.Context, query string, license string) ([]repos.ChunkHit, error) {
	vectors, err := s.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return s.chunks.MatchByEmbedding(ctx, nil, vectors[0], matchThreshold, legLimit, license)
}

// searchTerms keeps query words longer than two characters, the rest is
// noise for full-text search.
func searchTerms(query string) string {
	fields := strings.Fields(query)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// fuseRRF merges ranked lists by reciprocal rank: each list contributes
// 1/(K + rank + 1) per item, scores sum across lists, and the fused
// order is by total score descending. An item's first occurrence
// supplies its hit payload.
func fuseRRF(lists ...[]repos.ChunkHit) []repos.ChunkHit {
	scores := make(map[uuid.UUID]float64)
	hits := make(map[uuid.UUID]repos.ChunkHit)
	var order []uuid.UUID

	for _, list := range lists {
		for rank, hit := range list {
			id := hit.Chunk.ID
			if _, seen := scores[id]; !seen {
				hits[id] = hit
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(rrfK+rank+1)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]repos.ChunkHit, 0, len(order))
	for _, id := range order {
		hit := hits[id]
		hit.Score = scores[id]
		fused = append(fused, hit)
	}
	return fused
}
