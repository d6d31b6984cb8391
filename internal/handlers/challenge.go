package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/challenge"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/types"
)

type ChallengeHandler struct {
	log    *logger.Logger
	engine *challenge.Engine
}

func NewChallengeHandler(log *logger.Logger, engine *challenge.Engine) *ChallengeHandler {
	return &ChallengeHandler{
		log:    log.With("handler", "ChallengeHandler"),
		engine: engine,
	}
}

// GET /api/challenges/today?studentId=...&license=A|B
func (h *ChallengeHandler) GetToday(c *gin.Context) {
	studentID, err := uuid.Parse(c.Query("studentId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_student", fmt.Errorf("studentId is required"))
		return
	}
	license := c.Query("license")
	if license != types.LicenseA && license != types.LicenseB {
		RespondError(c, http.StatusBadRequest, "invalid_license", fmt.Errorf("license must be A or B"))
		return
	}

	view, err := h.engine.GetTodaysChallenge(c.Request.Context(), studentID, license)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

type submitResponseRequest struct {
	StudentID      uuid.UUID `json:"studentId"`
	ChallengeID    uuid.UUID `json:"challengeId"`
	QuestionID     uuid.UUID `json:"questionId"`
	SelectedAnswer string    `json:"selectedAnswer"`
}

// POST /api/challenges/responses
func (h *ChallengeHandler) SubmitResponse(c *gin.Context) {
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.SelectedAnswer == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("selectedAnswer is required"))
		return
	}

	result, err := h.engine.SubmitResponse(c.Request.Context(), req.StudentID, req.ChallengeID, req.QuestionID, req.SelectedAnswer)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/cron/daily-challenge
// Creates today's challenge for both license tracks. Idempotent.
func (h *ChallengeHandler) RunDailyCron(c *gin.Context) {
	today := time.Now().UTC().Format("2006-01-02")

	results := gin.H{"date": today}
	for _, license := range []string{types.LicenseA, types.LicenseB} {
		created, err := h.engine.CreateDailyChallenge(c.Request.Context(), license, today)
		if err != nil {
			h.log.Error("daily challenge creation failed", "license", license, "error", err)
			results[license] = gin.H{"error": err.Error()}
			continue
		}
		results[license] = gin.H{"challengeId": created.ID}
	}
	RespondOK(c, results)
}
