package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

const channelChallengeCreated = "challenge.created"

type ChallengeCreatedEvent struct {
	ChallengeID   uuid.UUID `json:"challengeId"`
	ChallengeDate string    `json:"challengeDate"`
	LicenseType   string    `json:"licenseType"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EventBus fans out pipeline events to interested consumers (push
// notification workers, cache invalidation). Publishing is fire and
// forget from the caller's perspective.
type EventBus interface {
	PublishChallengeCreated(ctx context.Context, event ChallengeCreatedEvent) error
	Close() error
}

type eventBus struct {
	log    *logger.Logger
	client *redis.Client
}

// NewEventBus returns (nil, nil) when REDIS_ADDR is unset. Callers treat
// a nil bus as "events disabled".
func NewEventBus(log *logger.Logger) (EventBus, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	return &eventBus{
		log:    log.With("service", "EventBus"),
		client: client,
	}, nil
}

func (b *eventBus) PublishChallengeCreated(ctx context.Context, event ChallengeCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal challenge.created event: %w", err)
	}
	if err := b.client.Publish(ctx, channelChallengeCreated, payload).Err(); err != nil {
		return fmt.Errorf("publish challenge.created: %w", err)
	}
	b.log.Debug("published event", "channel", channelChallengeCreated, "challenge_id", event.ChallengeID)
	return nil
}

func (b *eventBus) Close() error {
	return b.client.Close()
}
