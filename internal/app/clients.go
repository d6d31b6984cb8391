package app

import (
	"context"
	"os"

	"github.com/goldseal/goldseal-backend/internal/clients/anthropic"
	"github.com/goldseal/goldseal-backend/internal/clients/embeddings"
	"github.com/goldseal/goldseal-backend/internal/clients/gcpvision"
	"github.com/goldseal/goldseal-backend/internal/clients/gcs"
	"github.com/goldseal/goldseal-backend/internal/clients/redisbus"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

type Clients struct {
	LLM       anthropic.Client
	Embedding embeddings.Provider
	Bucket    gcs.BucketService
	OCR       gcpvision.OCR
	EventBus  redisbus.EventBus
}

// wireClients builds the external collaborators. The LLM, embedding
// provider, OCR, and event bus are all optional: a missing key leaves
// the field nil and the owning service degrades. Only the handout
// bucket is required.
func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var clients Clients

	llm, err := anthropic.NewClient(log)
	if err != nil {
		log.Warn("anthropic client disabled", "error", err)
	} else {
		clients.LLM = llm
	}

	clients.Embedding = wireEmbeddingProvider(log)

	bucket, err := gcs.NewBucketService(ctx, log)
	if err != nil {
		return Clients{}, err
	}
	clients.Bucket = bucket

	if os.Getenv("VISION_OCR_ENABLED") == "true" {
		ocr, err := gcpvision.NewOCR(ctx, log)
		if err != nil {
			log.Warn("vision ocr disabled", "error", err)
		} else {
			clients.OCR = ocr
		}
	}

	bus, err := redisbus.NewEventBus(log)
	if err != nil {
		log.Warn("event bus disabled", "error", err)
	} else if bus != nil {
		clients.EventBus = bus
	}

	return clients, nil
}

// wireEmbeddingProvider prefers Voyage, falls back to OpenAI, and
// returns nil when neither key is present.
func wireEmbeddingProvider(log *logger.Logger) embeddings.Provider {
	if provider, err := embeddings.NewVoyage(log); err == nil {
		return provider
	}
	if provider, err := embeddings.NewOpenAI(log); err == nil {
		return provider
	}
	log.Warn("no embedding provider configured, vector search and embedding disabled")
	return nil
}
