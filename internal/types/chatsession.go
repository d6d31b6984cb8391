package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn in a session's message list.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession is an ongoing conversation. StudentID is optional (anonymous
// demo chat is allowed). Messages is append-only within a turn;
// ContextChunkIDs holds only the most recent turn's grounding.
type ChatSession struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID       *uuid.UUID     `gorm:"type:uuid;index" json:"student_id,omitempty"`
	Title           string         `gorm:"not null;default:'New Chat'" json:"title"`
	Messages        datatypes.JSON `gorm:"type:jsonb;not null" json:"messages"`
	ContextChunkIDs datatypes.JSON `gorm:"type:jsonb" json:"context_chunk_ids"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
