package server

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/goldseal/goldseal-backend/internal/handlers"
)

type RouterConfig struct {
	PipelineHandler  *handlers.PipelineHandler
	ChatHandler      *handlers.ChatHandler
	ChallengeHandler *handlers.ChallengeHandler
	QuestionHandler  *handlers.QuestionHandler
	CronSecret       string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Chat
		api.POST("/chat", cfg.ChatHandler.Chat)
		api.POST("/chat/sessions", cfg.ChatHandler.CreateSession)
		api.GET("/chat/sessions/:id", cfg.ChatHandler.GetSession)

		// Challenges
		api.GET("/challenges/today", cfg.ChallengeHandler.GetToday)
		api.POST("/challenges/responses", cfg.ChallengeHandler.SubmitResponse)
	}

	admin := router.Group("/api/admin")
	{
		admin.POST("/handouts/:id/process", cfg.PipelineHandler.ProcessHandout)
		admin.GET("/handouts/:id/process", cfg.PipelineHandler.GetStatus)

		admin.POST("/questions", cfg.QuestionHandler.CreateManual)
		admin.POST("/questions/:id/verify", cfg.QuestionHandler.Verify)
		admin.POST("/questions/:id/regenerate", cfg.QuestionHandler.Regenerate)
		admin.DELETE("/questions/:id", cfg.QuestionHandler.Reject)
	}

	cron := router.Group("/api/cron")
	cron.Use(requireCronSecret(cfg.CronSecret))
	{
		cron.GET("/daily-challenge", cfg.ChallengeHandler.RunDailyCron)
		cron.POST("/embed-pending", cfg.PipelineHandler.EmbedPending)
	}

	return router
}

// requireCronSecret guards scheduler-only routes with a bearer token.
// With no secret configured the routes are disabled, not open.
func requireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != secret {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
