package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

// VerifiedFilter narrows verified-question listings for the challenge
// selector. Difficulty empty means any tier; OnlyIDs non-nil restricts to
// that set; ExcludeIDs are always removed.
type VerifiedFilter struct {
	License    string
	Difficulty string
	OnlyIDs    []uuid.UUID
	ExcludeIDs []uuid.UUID
	Limit      int
}

type QuestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Verify(ctx context.Context, tx *gorm.DB, id uuid.UUID, verifierID uuid.UUID) error
	ListVerifiedIDs(ctx context.Context, tx *gorm.DB, filter VerifiedFilter) ([]uuid.UUID, error)
	CountVerified(ctx context.Context, tx *gorm.DB, license string) (int64, error)
	CountByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questions) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(questions).Error
}

func (r *questionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var q types.Question
	if err := transaction.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Question
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

func (r *questionRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).Delete(&types.Question{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

// Verify is one-way: an already-verified question stays verified with its
// original verifier.
func (r *questionRepo) Verify(ctx context.Context, tx *gorm.DB, id uuid.UUID, verifierID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).Model(&types.Question{}).
		Where("id = ?", id).
		Where("is_verified = ?", false).
		Updates(map[string]any{
			"is_verified": true,
			"verified_by": verifierID,
			"verified_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := transaction.WithContext(ctx).Model(&types.Question{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.ErrNotFound
		}
	}
	return nil
}

func (r *questionRepo) ListVerifiedIDs(ctx context.Context, tx *gorm.DB, filter VerifiedFilter) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Question{}).
		Where("is_verified = ?", true)
	if filter.License != "" {
		q = q.Where("license_type IN ?", []string{filter.License, types.LicenseBoth})
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.OnlyIDs != nil {
		if len(filter.OnlyIDs) == 0 {
			return nil, nil
		}
		q = q.Where("id IN ?", filter.OnlyIDs)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *questionRepo) CountVerified(ctx context.Context, tx *gorm.DB, license string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Question{}).
		Where("is_verified = ?", true)
	if license != "" {
		q = q.Where("license_type IN ?", []string{license, types.LicenseBoth})
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *questionRepo) CountByHandoutID(ctx context.Context, tx *gorm.DB, handoutID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).Model(&types.Question{}).
		Where("handout_id = ?", handoutID).
		Count(&count).Error
	return count, err
}
