package app

import (
	"gorm.io/gorm"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/repos"
)

type Repos struct {
	Handout     repos.HandoutRepo
	Chunk       repos.ChunkRepo
	Question    repos.QuestionRepo
	Challenge   repos.ChallengeRepo
	Response    repos.ResponseRepo
	Student     repos.StudentRepo
	ChatSession repos.ChatSessionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Handout:     repos.NewHandoutRepo(db, log),
		Chunk:       repos.NewChunkRepo(db, log),
		Question:    repos.NewQuestionRepo(db, log),
		Challenge:   repos.NewChallengeRepo(db, log),
		Response:    repos.NewResponseRepo(db, log),
		Student:     repos.NewStudentRepo(db, log),
		ChatSession: repos.NewChatSessionRepo(db, log),
	}
}
