package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// HandoutChunk is the atomic unit of retrieval. Embedding is a JSONB float
// array and stays null until the embedder runs. Chunks for a handout are
// fully replaced whenever chunking reruns.
type HandoutChunk struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	HandoutID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"handout_id"`
	Handout    *Handout       `gorm:"constraint:OnDelete:CASCADE;foreignKey:HandoutID;references:ID" json:"handout,omitempty"`
	ChunkIndex int            `gorm:"not null" json:"chunk_index"`
	Content    string         `gorm:"not null" json:"content"`
	TokenCount int            `gorm:"not null" json:"token_count"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	Embedding  datatypes.JSON `gorm:"type:jsonb" json:"embedding"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (HandoutChunk) TableName() string {
	return "handout_chunks"
}

// ChunkMetadata is the JSONB shape stored on each chunk.
type ChunkMetadata struct {
	SectionTitle       string `json:"sectionTitle,omitempty"`
	SectionSummary     string `json:"sectionSummary,omitempty"`
	ChunkOfSection     int    `json:"chunkOfSection,omitempty"`
	TotalSectionChunks int    `json:"totalSectionChunks,omitempty"`
}
