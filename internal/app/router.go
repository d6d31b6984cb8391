package app

import (
	"github.com/gin-gonic/gin"

	"github.com/goldseal/goldseal-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		PipelineHandler:  handlerset.Pipeline,
		ChatHandler:      handlerset.Chat,
		ChallengeHandler: handlerset.Challenge,
		QuestionHandler:  handlerset.Question,
		CronSecret:       cfg.CronSecret,
	})
}
