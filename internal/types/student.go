package types

import (
	"time"

	"github.com/google/uuid"
)

// Student carries the fields the challenge engine needs (streak bookkeeping
// and license track). Registration and profile management live outside this
// service.
type Student struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email            string     `gorm:"not null;uniqueIndex" json:"email"`
	FullName         string     `gorm:"not null" json:"full_name"`
	LicenseTrack     string     `gorm:"not null;default:'B'" json:"license_track"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastChallengeDate *time.Time `gorm:"type:date" json:"last_challenge_date,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}
