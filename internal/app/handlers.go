package app

import (
	"github.com/goldseal/goldseal-backend/internal/handlers"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

type Handlers struct {
	Pipeline  *handlers.PipelineHandler
	Chat      *handlers.ChatHandler
	Challenge *handlers.ChallengeHandler
	Question  *handlers.QuestionHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Pipeline:  handlers.NewPipelineHandler(log, serviceset.Pipeline, serviceset.Embedder),
		Chat:      handlers.NewChatHandler(log, serviceset.Chat),
		Challenge: handlers.NewChallengeHandler(log, serviceset.Challenge),
		Question:  handlers.NewQuestionHandler(log, reposet.Question, serviceset.Generator),
	}
}
