package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/goldseal/goldseal-backend/internal/pipeline"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type QuestionHandler struct {
	log       *logger.Logger
	questions repos.QuestionRepo
	generator *pipeline.QuestionGenerator
}

func NewQuestionHandler(log *logger.Logger, questions repos.QuestionRepo, generator *pipeline.QuestionGenerator) *QuestionHandler {
	return &QuestionHandler{
		log:       log.With("handler", "QuestionHandler"),
		questions: questions,
		generator: generator,
	}
}

type verifyRequest struct {
	VerifierID uuid.UUID `json:"verifierId"`
}

// POST /api/admin/questions/:id/verify
// Promote an AI-generated question into the challenge pool. One-way.
func (h *QuestionHandler) Verify(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.questions.Verify(c.Request.Context(), nil, questionID, req.VerifierID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"verified": true})
}

// DELETE /api/admin/questions/:id
// Reject a generated question; rejection deletes the row.
func (h *QuestionHandler) Reject(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.questions.Delete(c.Request.Context(), nil, questionID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/admin/questions/:id/regenerate
// Produce a fresh candidate from the question's source chunk. The
// candidate is returned for review, not stored.
func (h *QuestionHandler) Regenerate(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	candidate, err := h.generator.Regenerate(c.Request.Context(), questionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, candidate)
}

type createQuestionRequest struct {
	HandoutID     *uuid.UUID `json:"handoutId,omitempty"`
	QuestionText  string     `json:"questionText"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
	Difficulty    string     `json:"difficulty"`
	LicenseType   string     `json:"licenseType"`
	TopicTags     []string   `json:"topicTags,omitempty"`
	VerifierID    uuid.UUID  `json:"verifierId"`
}

// POST /api/admin/questions
// Manually authored questions enter the pool already verified.
func (h *QuestionHandler) CreateManual(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := validateManualQuestion(req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_question", err)
		return
	}
	license, err := normalizeLicense(req.LicenseType)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_license", err)
		return
	}

	options, err := json.Marshal(req.Options)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	tags, err := json.Marshal(req.TopicTags)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	question := &types.Question{
		HandoutID:     req.HandoutID,
		QuestionText:  req.QuestionText,
		QuestionType:  "multiple_choice",
		Options:       datatypes.JSON(options),
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		Difficulty:    req.Difficulty,
		LicenseType:   license,
		TopicTags:     datatypes.JSON(tags),
		IsAIGenerated: false,
		IsVerified:    true,
		VerifiedBy:    &req.VerifierID,
	}
	if err := h.questions.Create(c.Request.Context(), nil, []*types.Question{question}); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, question)
}

func validateManualQuestion(req createQuestionRequest) error {
	if strings.TrimSpace(req.QuestionText) == "" {
		return fmt.Errorf("questionText is required")
	}
	if len(req.Options) != 4 {
		return fmt.Errorf("exactly 4 options are required, got %d", len(req.Options))
	}
	letter := strings.TrimSpace(req.CorrectAnswer)
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'D' {
		return fmt.Errorf("correctAnswer must be a letter A-D")
	}
	switch req.Difficulty {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
	default:
		return fmt.Errorf("difficulty must be easy, medium, or hard")
	}
	return nil
}
