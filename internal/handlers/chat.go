package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/rag"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type ChatHandler struct {
	log  *logger.Logger
	chat *rag.ChatService
}

func NewChatHandler(log *logger.Logger, chat *rag.ChatService) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "ChatHandler"),
		chat: chat,
	}
}

type chatRequest struct {
	Message     string     `json:"message"`
	SessionID   *uuid.UUID `json:"sessionId,omitempty"`
	LicenseType string     `json:"licenseType,omitempty"`
}

// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("message is required"))
		return
	}
	license, err := normalizeLicense(req.LicenseType)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_license", err)
		return
	}

	result, err := h.chat.Chat(c.Request.Context(), req.Message, req.SessionID, license)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

type createSessionRequest struct {
	StudentID *uuid.UUID `json:"studentId,omitempty"`
	Title     string     `json:"title,omitempty"`
}

// POST /api/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	session, err := h.chat.CreateSession(c.Request.Context(), req.StudentID, req.Title)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, session)
}

// GET /api/chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	session, err := h.chat.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	var messages []types.ChatMessage
	if len(session.Messages) > 0 {
		if err := json.Unmarshal(session.Messages, &messages); err != nil {
			RespondError(c, http.StatusInternalServerError, "internal", err)
			return
		}
	}
	RespondOK(c, gin.H{
		"id":       session.ID,
		"title":    session.Title,
		"messages": messages,
	})
}

func normalizeLicense(license string) (string, error) {
	switch license {
	case "":
		return types.LicenseBoth, nil
	case types.LicenseA, types.LicenseB, types.LicenseBoth:
		return license, nil
	default:
		return "", fmt.Errorf("unknown license type %q", license)
	}
}
