package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	pkgerrors "github.com/goldseal/goldseal-backend/internal/pkg/errors"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type ChatSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error)
	// UpdateTurn persists the appended message list and overwrites the
	// session's retrieval context with this turn's grounding.
	UpdateTurn(ctx context.Context, tx *gorm.DB, id uuid.UUID, messages datatypes.JSON, contextChunkIDs datatypes.JSON) error
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return &chatSessionRepo{db: db, log: baseLog.With("repo", "ChatSessionRepo")}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(session.Messages) == 0 {
		session.Messages = datatypes.JSON([]byte("[]"))
	}
	return transaction.WithContext(ctx).Create(session).Error
}

func (r *chatSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.ChatSession
	if err := transaction.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *chatSessionRepo) UpdateTurn(ctx context.Context, tx *gorm.DB, id uuid.UUID, messages datatypes.JSON, contextChunkIDs datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"messages":          messages,
			"context_chunk_ids": contextChunkIDs,
			"updated_at":        time.Now(),
		}).Error
}
