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

type StudentRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Student, error)
	UpdateStreak(ctx context.Context, tx *gorm.DB, id uuid.UUID, current, longest int, lastChallengeDate time.Time) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

func (r *studentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.Student
	if err := transaction.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *studentRepo) UpdateStreak(ctx context.Context, tx *gorm.DB, id uuid.UUID, current, longest int, lastChallengeDate time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Student{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_streak":      current,
			"longest_streak":      longest,
			"last_challenge_date": lastChallengeDate,
			"updated_at":          time.Now(),
		}).Error
}
