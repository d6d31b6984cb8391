package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DailyChallenge is the shared question set for one license track on one
// date. Creation is idempotent per (challenge_date, license_type).
type DailyChallenge struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChallengeDate string         `gorm:"type:date;not null;uniqueIndex:idx_challenge_date_license" json:"challenge_date"`
	LicenseType   string         `gorm:"not null;uniqueIndex:idx_challenge_date_license" json:"license_type"`
	QuestionIDs   datatypes.JSON `gorm:"type:jsonb;not null" json:"question_ids"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DailyChallenge) TableName() string {
	return "daily_challenges"
}

// ChallengeResponse is one student's answer to one question within one
// challenge. Correctness is derived at submission time and then frozen;
// resubmission for the same question overwrites the row.
type ChallengeResponse struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_response_student_challenge_question" json:"student_id"`
	ChallengeID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_response_student_challenge_question" json:"challenge_id"`
	QuestionID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_response_student_challenge_question" json:"question_id"`
	SelectedAnswer string    `gorm:"not null" json:"selected_answer"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	AnsweredAt     time.Time `gorm:"not null;default:now()" json:"answered_at"`
}

func (ChallengeResponse) TableName() string {
	return "challenge_responses"
}
