package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type ResponseRepo interface {
	// Upsert writes the response, overwriting an existing row for the same
	// (student, challenge, question). It reports whether a new row was
	// created so the caller can fire completion side effects exactly once.
	Upsert(ctx context.Context, tx *gorm.DB, response *types.ChallengeResponse) (created bool, err error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.ChallengeResponse, error)
	ListByStudentChallenge(ctx context.Context, tx *gorm.DB, studentID, challengeID uuid.UUID) ([]*types.ChallengeResponse, error)
	CountByStudentChallenge(ctx context.Context, tx *gorm.DB, studentID, challengeID uuid.UUID) (int64, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	return &responseRepo{db: db, log: baseLog.With("repo", "ResponseRepo")}
}

func (r *responseRepo) Upsert(ctx context.Context, tx *gorm.DB, response *types.ChallengeResponse) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	created := false
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var existing types.ChallengeResponse
		err := inner.
			Where("student_id = ? AND challenge_id = ? AND question_id = ?",
				response.StudentID, response.ChallengeID, response.QuestionID).
			First(&existing).Error
		switch {
		case err == nil:
			return inner.Model(&types.ChallengeResponse{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"selected_answer": response.SelectedAnswer,
					"is_correct":      response.IsCorrect,
					"answered_at":     time.Now(),
				}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if response.ID == uuid.Nil {
				response.ID = uuid.New()
			}
			if response.AnsweredAt.IsZero() {
				response.AnsweredAt = time.Now()
			}
			if err := inner.Create(response).Error; err != nil {
				return err
			}
			created = true
			return nil
		default:
			return err
		}
	})
	return created, err
}

func (r *responseRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.ChallengeResponse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChallengeResponse
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseRepo) ListByStudentChallenge(ctx context.Context, tx *gorm.DB, studentID, challengeID uuid.UUID) ([]*types.ChallengeResponse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChallengeResponse
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND challenge_id = ?", studentID, challengeID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseRepo) CountByStudentChallenge(ctx context.Context, tx *gorm.DB, studentID, challengeID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).Model(&types.ChallengeResponse{}).
		Where("student_id = ? AND challenge_id = ?", studentID, challengeID).
		Count(&count).Error
	return count, err
}
