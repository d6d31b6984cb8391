package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is an exam item. AI-generated questions start unverified and
// require an explicit human approval; manually created questions are
// verified on insert. Rejection deletes the row rather than un-verifying.
type Question struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	HandoutID     *uuid.UUID     `gorm:"type:uuid;index" json:"handout_id,omitempty"`
	SourceChunkID *uuid.UUID     `gorm:"type:uuid" json:"source_chunk_id,omitempty"`
	QuestionText  string         `gorm:"not null" json:"question_text"`
	QuestionType  string         `gorm:"not null;default:'multiple_choice'" json:"question_type"`
	Options       datatypes.JSON `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswer string         `gorm:"not null" json:"correct_answer"`
	Explanation   string         `json:"explanation"`
	Difficulty    string         `gorm:"not null;index" json:"difficulty"`
	LicenseType   string         `gorm:"not null;default:'both';index" json:"license_type"`
	TopicTags     datatypes.JSON `gorm:"type:jsonb" json:"topic_tags"`
	IsAIGenerated bool           `gorm:"not null;default:false" json:"is_ai_generated"`
	IsVerified    bool           `gorm:"not null;default:false;index" json:"is_verified"`
	VerifiedBy    *uuid.UUID     `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt    *time.Time     `json:"verified_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}
