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

type HandoutRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Handout, error)
	UpdateExtraction(ctx context.Context, tx *gorm.DB, id uuid.UUID, text string, method string) error
	MarkProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type handoutRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHandoutRepo(db *gorm.DB, baseLog *logger.Logger) HandoutRepo {
	return &handoutRepo{db: db, log: baseLog.With("repo", "HandoutRepo")}
}

func (r *handoutRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Handout, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var h types.Handout
	if err := transaction.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *handoutRepo) UpdateExtraction(ctx context.Context, tx *gorm.DB, id uuid.UUID, text string, method string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).Model(&types.Handout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"extracted_text":    text,
			"extraction_method": method,
			"is_processed":      true,
			"processed_at":      now,
			"updated_at":        now,
		}).Error
}

func (r *handoutRepo) MarkProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).Model(&types.Handout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_processed": true,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}
