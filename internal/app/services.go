package app

import (
	"github.com/goldseal/goldseal-backend/internal/challenge"
	"github.com/goldseal/goldseal-backend/internal/pipeline"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/pkg/throttle"
	"github.com/goldseal/goldseal-backend/internal/rag"
)

type Services struct {
	Pipeline  *pipeline.Service
	Embedder  *pipeline.Embedder
	Generator *pipeline.QuestionGenerator
	Searcher  *rag.Searcher
	Chat      *rag.ChatService
	Challenge *challenge.Engine
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	extractor := pipeline.NewExtractor(log, reposet.Handout, clients.Bucket, clients.LLM, clients.OCR)
	chunker := pipeline.NewChunker(log, reposet.Handout, reposet.Chunk, extractor)
	embedder := pipeline.NewEmbedder(log, reposet.Chunk, clients.Embedding, throttle.FixedDelay(cfg.EmbedPaceDelay))
	generator := pipeline.NewQuestionGenerator(log, reposet.Chunk, reposet.Question, clients.LLM, throttle.FixedDelay(cfg.GeneratePaceDelay))
	pipelineSvc := pipeline.NewService(log, reposet.Handout, reposet.Chunk, reposet.Question,
		extractor, chunker, embedder, generator)

	searcher := rag.NewSearcher(log, reposet.Chunk, clients.Embedding)
	chat := rag.NewChatService(log, searcher, reposet.ChatSession, clients.LLM)

	engine := challenge.NewEngine(log, reposet.Question, reposet.Challenge, reposet.Response,
		reposet.Student, clients.EventBus)

	return Services{
		Pipeline:  pipelineSvc,
		Embedder:  embedder,
		Generator: generator,
		Searcher:  searcher,
		Chat:      chat,
		Challenge: engine,
	}
}
