package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type fakeRetriever struct {
	hits []repos.ChunkHit
}

func (f *fakeRetriever) Search(ctx context.Context, query string, license string, limit int) ([]repos.ChunkHit, error) {
	return f.hits, nil
}

type fakeChatLLM struct {
	response   string
	lastSystem string
	lastTurns  []anthropic.Message
}

func (f *fakeChatLLM) GenerateText(ctx context.Context, system string, messages []anthropic.Message) (string, error) {
	f.lastSystem = system
	f.lastTurns = messages
	return f.response, nil
}

func (f *fakeChatLLM) GenerateTextWithImage(ctx context.Context, system string, prompt string, image []byte, mediaType string) (string, error) {
	return "", fmt.Errorf("not used")
}

type fakeSessionRepo struct {
	session      *types.ChatSession
	savedTurn    datatypes.JSON
	savedContext datatypes.JSON
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) error {
	session.ID = uuid.New()
	f.session = session
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error) {
	return f.session, nil
}

func (f *fakeSessionRepo) UpdateTurn(ctx context.Context, tx *gorm.DB, id uuid.UUID, messages datatypes.JSON, contextChunkIDs datatypes.JSON) error {
	f.savedTurn = messages
	f.savedContext = contextChunkIDs
	return nil
}

func metaChunkHit(title, section string) repos.ChunkHit {
	meta, _ := json.Marshal(types.ChunkMetadata{SectionTitle: section})
	return repos.ChunkHit{
		Chunk: &types.HandoutChunk{
			ID:       uuid.New(),
			Content:  "Chunk content about " + section,
			Metadata: meta,
		},
		HandoutTitle: title,
	}
}

func TestChatWithoutModelDegrades(t *testing.T) {
	s := NewChatService(logger.NewNop(), &fakeRetriever{}, &fakeSessionRepo{}, nil)

	result, err := s.Chat(context.Background(), "What is a journeyman?", nil, types.LicenseB)
	if err != nil {
		t.Fatal(err)
	}
	if result.Response != chatUnavailableMessage {
		t.Errorf("response = %q", result.Response)
	}
	if len(result.Sources) != 0 {
		t.Errorf("sources = %+v, want empty", result.Sources)
	}
}

func TestChatEmptyRetrievalSendsPlainQuestion(t *testing.T) {
	llm := &fakeChatLLM{response: "I don't have material on that."}
	s := NewChatService(logger.NewNop(), &fakeRetriever{}, &fakeSessionRepo{}, llm)

	result, err := s.Chat(context.Background(), "What about maritime law?", nil, types.LicenseBoth)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("sources = %+v, want none", result.Sources)
	}
	last := llm.lastTurns[len(llm.lastTurns)-1]
	if last.Content != "What about maritime law?" {
		t.Errorf("prompt = %q, want the bare question without a context block", last.Content)
	}
}

func TestChatBuildsContextBlockAndSources(t *testing.T) {
	hits := []repos.ChunkHit{
		metaChunkHit("Safety Handout", "Fall Protection"),
		metaChunkHit("Code Handout", ""),
	}
	llm := &fakeChatLLM{response: "Per [Source 1], guardrails are required."}
	s := NewChatService(logger.NewNop(), &fakeRetriever{hits: hits}, &fakeSessionRepo{}, llm)

	result, err := s.Chat(context.Background(), "When are guardrails required?", nil, types.LicenseA)
	if err != nil {
		t.Fatal(err)
	}

	last := llm.lastTurns[len(llm.lastTurns)-1].Content
	if !strings.Contains(last, "[Source 1: Safety Handout - Fall Protection]") {
		t.Errorf("context block missing labeled source:\n%s", last)
	}
	if !strings.Contains(last, "[Source 2: Code Handout - General]") {
		t.Errorf("missing-section source should fall back to General:\n%s", last)
	}
	if !strings.Contains(llm.lastSystem, "License A") {
		t.Errorf("system prompt lacks license track: %q", llm.lastSystem)
	}

	if len(result.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(result.Sources))
	}
	if result.Sources[0].Title != "Safety Handout" || result.Sources[0].Section != "Fall Protection" {
		t.Errorf("source[0] = %+v", result.Sources[0])
	}
	if result.Sources[1].Section != "" {
		t.Errorf("source[1].Section = %q, want empty", result.Sources[1].Section)
	}
}

func TestChatPersistsTurnAndTrimsHistory(t *testing.T) {
	// 14 existing messages; only the last 10 should reach the model.
	var history []types.ChatMessage
	for i := 0; i < 7; i++ {
		history = append(history,
			types.ChatMessage{Role: types.ChatRoleUser, Content: fmt.Sprintf("q%d", i)},
			types.ChatMessage{Role: types.ChatRoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}
	historyJSON, _ := json.Marshal(history)

	sessionID := uuid.New()
	sessions := &fakeSessionRepo{session: &types.ChatSession{
		ID:       sessionID,
		Messages: historyJSON,
	}}
	hits := []repos.ChunkHit{metaChunkHit("Handout", "Permits")}
	llm := &fakeChatLLM{response: "Answer."}
	s := NewChatService(logger.NewNop(), &fakeRetriever{hits: hits}, sessions, llm)

	if _, err := s.Chat(context.Background(), "new question", &sessionID, types.LicenseB); err != nil {
		t.Fatal(err)
	}

	if len(llm.lastTurns) != historyWindow+1 {
		t.Errorf("model saw %d turns, want %d history + 1 current", len(llm.lastTurns), historyWindow)
	}
	if llm.lastTurns[0].Content != "q2" {
		t.Errorf("oldest retained turn = %q, want q2", llm.lastTurns[0].Content)
	}

	var saved []types.ChatMessage
	if err := json.Unmarshal(sessions.savedTurn, &saved); err != nil {
		t.Fatal(err)
	}
	if len(saved) != historyWindow+2 {
		t.Errorf("persisted %d messages, want %d", len(saved), historyWindow+2)
	}
	lastSaved := saved[len(saved)-1]
	if lastSaved.Role != types.ChatRoleAssistant || lastSaved.Content != "Answer." {
		t.Errorf("last persisted message = %+v", lastSaved)
	}

	var savedChunks []uuid.UUID
	if err := json.Unmarshal(sessions.savedContext, &savedChunks); err != nil {
		t.Fatal(err)
	}
	if len(savedChunks) != 1 || savedChunks[0] != hits[0].Chunk.ID {
		t.Errorf("persisted context chunks = %v", savedChunks)
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	sessions := &fakeSessionRepo{}
	s := NewChatService(logger.NewNop(), &fakeRetriever{}, sessions, nil)

	session, err := s.CreateSession(context.Background(), nil, "  ")
	if err != nil {
		t.Fatal(err)
	}
	if session.Title != "New Chat" {
		t.Errorf("title = %q", session.Title)
	}
	if string(session.Messages) != "[]" {
		t.Errorf("messages = %s, want []", session.Messages)
	}
}
