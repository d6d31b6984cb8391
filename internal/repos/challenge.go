package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type ChallengeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, challenge *types.DailyChallenge) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DailyChallenge, error)
	GetByDate(ctx context.Context, tx *gorm.DB, date string, license string) (*types.DailyChallenge, error)
}

type challengeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChallengeRepo(db *gorm.DB, baseLog *logger.Logger) ChallengeRepo {
	return &challengeRepo{db: db, log: baseLog.With("repo", "ChallengeRepo")}
}

func (r *challengeRepo) Create(ctx context.Context, tx *gorm.DB, challenge *types.DailyChallenge) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DailyChallenge, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.DailyChallenge
	if err := transaction.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepo) GetByDate(ctx context.Context, tx *gorm.DB, date string, license string) (*types.DailyChallenge, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.DailyChallenge
	if err := transaction.WithContext(ctx).
		Where("challenge_date = ? AND license_type = ?", date, license).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
