package app

import (
	"time"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
	"github.com/goldseal/goldseal-backend/internal/utils"
)

type Config struct {
	CronSecret        string
	EmbedPaceDelay    time.Duration
	GeneratePaceDelay time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cronSecret := utils.GetEnv("CRON_SECRET", "", log)
	embedPaceMs := utils.GetEnvAsInt("EMBED_PACE_MS", 100, log)
	generatePaceMs := utils.GetEnvAsInt("GENERATE_PACE_MS", 500, log)
	return Config{
		CronSecret:        cronSecret,
		EmbedPaceDelay:    time.Duration(embedPaceMs) * time.Millisecond,
		GeneratePaceDelay: time.Duration(generatePaceMs) * time.Millisecond,
	}
}
