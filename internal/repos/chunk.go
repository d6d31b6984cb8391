package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

// ChunkHit is one retrieval candidate with its handout title attached for
// citation rendering.
type ChunkHit struct {
	Chunk        *types.HandoutChunk
	HandoutTitle string
	Score        float64
}

type ChunkRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chunks []*types.HandoutChunk) error
	// ReplaceForHandout deletes every existing chunk for the handout and
	// inserts the new set in one transaction, so a rerun can never leave
	// stale overlap artifacts behind.
	ReplaceForHandout(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID, chunks []*types.HandoutChunk) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.HandoutChunk, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.HandoutChunk, error)
	GetByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) ([]*types.HandoutChunk, error)
	GetNeighbors(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID, chunkIndex int) ([]*types.HandoutChunk, error)
	GetMissingEmbedding(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) ([]*types.HandoutChunk, error)
	GetAnyMissingEmbedding(ctx context.Context, tx *gorm.DB, limit int) ([]*types.HandoutChunk, error)
	UpdateEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []float32) error
	CountByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error)
	CountEmbeddedByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error)
	MatchByEmbedding(ctx context.Context, tx *gorm.DB, queryEmbedding []float32, threshold float64, limit int, license string) ([]ChunkHit, error)
	TextSearch(ctx context.Context, tx *gorm.DB, query string, limit int, license string) ([]ChunkHit, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.HandoutChunk) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chunks) == 0 {
		return nil
	}

	// Keep batches small because Content is large
	const batchSize = 100
	return transaction.WithContext(ctx).CreateInBatches(chunks, batchSize).Error
}

func (r *chunkRepo) ReplaceForHandout(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID, chunks []*types.HandoutChunk) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Where("handout_id = ?", handoutID).Delete(&types.HandoutChunk{}).Error; err != nil {
			return fmt.Errorf("delete existing chunks: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		const batchSize = 100
		if err := inner.CreateInBatches(chunks, batchSize).Error; err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
}

func (r *chunkRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.HandoutChunk
	if err := transaction.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *chunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.HandoutChunk
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) ([]*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.HandoutChunk
	if err := transaction.WithContext(ctx).
		Where("handout_id = ?", handoutID).
		Order("chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetNeighbors(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID, chunkIndex int) ([]*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.HandoutChunk
	if err := transaction.WithContext(ctx).
		Where("handout_id = ?", handoutID).
		Where("chunk_index BETWEEN ? AND ?", chunkIndex-1, chunkIndex+1).
		Where("chunk_index <> ?", chunkIndex).
		Order("chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetMissingEmbedding(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) ([]*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.HandoutChunk
	if err := transaction.WithContext(ctx).
		Where("handout_id = ?", handoutID).
		Where("embedding IS NULL").
		Order("chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetAnyMissingEmbedding(ctx context.Context, tx *gorm.DB, limit int) ([]*types.HandoutChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.HandoutChunk
	q := transaction.WithContext(ctx).
		Where("embedding IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) UpdateEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []float32) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	b, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	return transaction.WithContext(ctx).Model(&types.HandoutChunk{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":  datatypes.JSON(b),
			"updated_at": time.Now(),
		}).Error
}

func (r *chunkRepo) CountByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).Model(&types.HandoutChunk{}).
		Where("handout_id = ?", handoutID).
		Count(&count).Error
	return count, err
}

func (r *chunkRepo) CountEmbeddedByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).Model(&types.HandoutChunk{}).
		Where("handout_id = ?", handoutID).
		Where("embedding IS NOT NULL").
		Count(&count).Error
	return count, err
}

// MatchByEmbedding scans embedded chunks (optionally filtered by license
// scope) and ranks them by cosine similarity against the query embedding in
// process. The candidate scan is capped; at current corpus sizes this stays
// well under the cap.
func (r *chunkRepo) MatchByEmbedding(ctx context.Context, tx *gorm.DB, queryEmbedding []float32, threshold float64, limit int, license string) ([]ChunkHit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(queryEmbedding) == 0 || limit <= 0 {
		return nil, nil
	}

	const candidateLimit = 1200

	type row struct {
		types.HandoutChunk
		HandoutTitle string `gorm:"column:handout_title"`
	}
	q := transaction.WithContext(ctx).
		Model(&types.HandoutChunk{}).
		Select("handout_chunks.*, handouts.title AS handout_title").
		Joins("JOIN handouts ON handout_chunks.handout_id = handouts.id").
		Where("handout_chunks.embedding IS NOT NULL")
	if license != "" {
		q = q.Where("handouts.license_type IN ?", []string{license, types.LicenseBoth})
	}
	var rows []row
	if err := q.Order("handout_chunks.created_at DESC").
		Limit(candidateLimit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]ChunkHit, 0, len(rows))
	for i := range rows {
		emb, err := ParseEmbeddingJSON(rows[i].Embedding)
		if err != nil || len(emb) != len(queryEmbedding) {
			continue
		}
		score := Cosine(queryEmbedding, emb)
		if score < threshold {
			continue
		}
		ch := rows[i].HandoutChunk
		hits = append(hits, ChunkHit{Chunk: &ch, HandoutTitle: rows[i].HandoutTitle, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// TextSearch runs Postgres full-text search over chunk content, ranked by
// ts_rank, optionally filtered by license scope.
func (r *chunkRepo) TextSearch(ctx context.Context, tx *gorm.DB, query string, limit int, license string) ([]ChunkHit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if query == "" || limit <= 0 {
		return nil, nil
	}

	licenseClause := ""
	args := []any{query, query}
	if license != "" {
		licenseClause = "AND handouts.license_type IN (?, 'both')"
		args = append(args, license)
	}
	sql := fmt.Sprintf(`
		SELECT handout_chunks.*,
		       handouts.title AS handout_title,
		       ts_rank(to_tsvector('english', handout_chunks.content), plainto_tsquery('english', ?)) AS rank
		FROM handout_chunks
		JOIN handouts ON handout_chunks.handout_id = handouts.id
		WHERE to_tsvector('english', handout_chunks.content) @@ plainto_tsquery('english', ?)
			%s
		ORDER BY rank DESC, handout_chunks.created_at DESC
		LIMIT %d;
	`, licenseClause, limit)

	type row struct {
		types.HandoutChunk
		HandoutTitle string  `gorm:"column:handout_title"`
		Rank         float64 `gorm:"column:rank"`
	}
	var rows []row
	if err := transaction.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]ChunkHit, 0, len(rows))
	for i := range rows {
		ch := rows[i].HandoutChunk
		hits = append(hits, ChunkHit{Chunk: &ch, HandoutTitle: rows[i].HandoutTitle, Score: rows[i].Rank})
	}
	return hits, nil
}

// ParseEmbeddingJSON decodes a stored JSONB embedding. A null or empty
// column yields an empty slice, not an error.
func ParseEmbeddingJSON(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
