package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
	FileTypeText  = "text"
)

const (
	LicenseA    = "A"
	LicenseB    = "B"
	LicenseBoth = "both"
)

const (
	ExtractionMethodText   = "text"
	ExtractionMethodVision = "vision"
)

// Handout is an uploaded course document. FilePath is the storage key in
// the handout bucket; ExtractedText stays nil until the extractor runs.
type Handout struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	FilePath      string     `gorm:"not null" json:"file_path"`
	FileType      string     `gorm:"not null" json:"file_type"`
	LicenseType   string     `gorm:"not null;default:'both'" json:"license_type"`
	ExtractedText *string    `json:"extracted_text,omitempty"`
	ExtractionMethod string  `json:"extraction_method,omitempty"`
	IsProcessed   bool       `gorm:"not null;default:false" json:"is_processed"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Handout) TableName() string {
	return "handouts"
}

// Section is a character-range view over a handout's extracted text,
// produced by structure analysis and consumed immediately by the chunker.
// Sections are never persisted.
type Section struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}
