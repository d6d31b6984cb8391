package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

const (
	// Number of fused hits handed to the model as context.
	retrieveLimit = 5

	// Trailing messages of session history included per turn.
	historyWindow = 10
)

const chatSystemPrompt = `You are a helpful study assistant for California contractor license exam preparation.
You help students understand building codes, licensing requirements, and construction standards.

Your role is to:
- Answer questions accurately based on the provided study materials
- Explain concepts in clear, practical terms
- Reference specific codes, regulations, and section numbers when available
- Help students prepare for License A (General Engineering) and License B (General Building) exams

Guidelines:
- Always cite your sources using [Source N] format when referencing the provided context
- If the context doesn't contain enough information, say so clearly
- When discussing codes, be specific about which code (CBC, NEC, etc.) and section numbers
- For safety-related topics, emphasize the importance of proper training and compliance
- If asked about something outside contractor licensing, politely redirect

Student's license track: {LICENSE_TYPE}`

const chatUnavailableMessage = "Chat is not available. Please configure the ANTHROPIC_API_KEY."

// Source is one citation returned with a chat answer.
type Source struct {
	Title   string    `json:"title"`
	Section string    `json:"section,omitempty"`
	ChunkID uuid.UUID `json:"chunkId"`
}

// ChatResult is one answered turn.
type ChatResult struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// Retriever is the retrieval dependency of the chat service.
type Retriever interface {
	Search(ctx context.Context, query string, license string, limit int) ([]repos.ChunkHit, error)
}

// ChatService answers student questions grounded in retrieved handout
// chunks. Sessions are optional; without one the turn is stateless.
type ChatService struct {
	log       *logger.Logger
	retriever Retriever
	sessions  repos.ChatSessionRepo
	llm       anthropic.Client
}

func NewChatService(log *logger.Logger, retriever Retriever, sessions repos.ChatSessionRepo, llm anthropic.Client) *ChatService {
	return &ChatService{
		log:       log.With("service", "ChatService"),
		retriever: retriever,
		sessions:  sessions,
		llm:       llm,
	}
}

// Chat runs one turn: retrieve, prompt, persist. A missing model key
// degrades to a fixed notice instead of an error so the endpoint stays
// up in partially configured environments.
func (s *ChatService) Chat(ctx context.Context, message string, sessionID *uuid.UUID, license string) (*ChatResult, error) {
	if s.llm == nil {
		return &ChatResult{Response: chatUnavailableMessage, Sources: []Source{}}, nil
	}

	hits, err := s.retriever.Search(ctx, message, license, retrieveLimit)
	if err != nil {
		return nil, err
	}

	contextBlock := buildContextBlock(hits)

	var history []types.ChatMessage
	if sessionID != nil {
		history, err = s.sessionHistory(ctx, *sessionID)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, anthropic.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, anthropic.Message{
		Role:    types.ChatRoleUser,
		Content: userTurnContent(message, contextBlock),
	})

	system := strings.ReplaceAll(chatSystemPrompt, "{LICENSE_TYPE}", licenseTrackLabel(license))
	answer, err := s.llm.GenerateText(ctx, system, messages)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if sessionID != nil {
		if err := s.saveTurn(ctx, *sessionID, history, message, answer, hits); err != nil {
			s.log.Warn("failed to persist chat turn", "session_id", *sessionID, "error", err)
		}
	}

	return &ChatResult{
		Response: answer,
		Sources:  sourcesFromHits(hits),
	}, nil
}

func buildContextBlock(hits []repos.ChunkHit) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s - %s]\n%s",
			i+1, hit.HandoutTitle, sectionOf(hit), hit.Chunk.Content))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func userTurnContent(message, contextBlock string) string {
	if contextBlock == "" {
		return message
	}
	return fmt.Sprintf(`Context from study materials:
%s

Student question: %s

Provide a helpful answer based on the context above. Cite sources using [Source N] format.`, contextBlock, message)
}

func sectionOf(hit repos.ChunkHit) string {
	var meta types.ChunkMetadata
	if len(hit.Chunk.Metadata) > 0 {
		_ = json.Unmarshal(hit.Chunk.Metadata, &meta)
	}
	if meta.SectionTitle == "" {
		return "General"
	}
	return meta.SectionTitle
}

func sourcesFromHits(hits []repos.ChunkHit) []Source {
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		section := ""
		var meta types.ChunkMetadata
		if len(hit.Chunk.Metadata) > 0 {
			_ = json.Unmarshal(hit.Chunk.Metadata, &meta)
			section = meta.SectionTitle
		}
		sources = append(sources, Source{
			Title:   hit.HandoutTitle,
			Section: section,
			ChunkID: hit.Chunk.ID,
		})
	}
	return sources
}

func licenseTrackLabel(license string) string {
	if license == types.LicenseBoth {
		return "A & B"
	}
	return "License " + license
}

func (s *ChatService) sessionHistory(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	session, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	var all []types.ChatMessage
	if len(session.Messages) > 0 {
		if err := json.Unmarshal(session.Messages, &all); err != nil {
			return nil, fmt.Errorf("decode session messages: %w", err)
		}
	}
	if len(all) > historyWindow {
		all = all[len(all)-historyWindow:]
	}
	return all, nil
}

func (s *ChatService) saveTurn(ctx context.Context, sessionID uuid.UUID, history []types.ChatMessage, message, answer string, hits []repos.ChunkHit) error {
	updated := append(append([]types.ChatMessage{}, history...),
		types.ChatMessage{Role: types.ChatRoleUser, Content: message},
		types.ChatMessage{Role: types.ChatRoleAssistant, Content: answer},
	)
	messagesJSON, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	chunkIDs := make([]uuid.UUID, 0, len(hits))
	for _, hit := range hits {
		chunkIDs = append(chunkIDs, hit.Chunk.ID)
	}
	chunkIDsJSON, err := json.Marshal(chunkIDs)
	if err != nil {
		return err
	}

	return s.sessions.UpdateTurn(ctx, nil, sessionID, datatypes.JSON(messagesJSON), datatypes.JSON(chunkIDsJSON))
}

// CreateSession opens a new conversation. StudentID may be nil for
// anonymous chat.
func (s *ChatService) CreateSession(ctx context.Context, studentID *uuid.UUID, title string) (*types.ChatSession, error) {
	if strings.TrimSpace(title) == "" {
		title = "New Chat"
	}
	session := &types.ChatSession{
		StudentID: studentID,
		Title:     title,
		Messages:  datatypes.JSON([]byte("[]")),
	}
	if err := s.sessions.Create(ctx, nil, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a session with its full message history.
func (s *ChatService) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	return s.sessions.GetByID(ctx, nil, sessionID)
}
