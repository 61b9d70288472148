package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event names published by the orchestrator.
const (
	ChallengeUpdated    = "challenge-updated"
	ParticipantJoined   = "challenge-participant-joined"
	FinalizationUpdated = "finalization-updated"
)

// Emitter broadcasts state-change events to interested consumers. Publishing
// is fire-and-forget: failures are logged, never returned to the caller.
type Emitter interface {
	Publish(ctx context.Context, event string, payload interface{})
}

type envelope struct {
	Source  string      `json:"source"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type emitter struct {
	nats        *nats.Conn
	redis       *redis.Client
	subjectBase string
	channelBase string
	logger      zerolog.Logger
	nodeID      string
}

// NewEmitter constructs an emitter publishing to NATS and, when configured,
// mirroring to a Redis channel. Either connection may be nil.
func NewEmitter(natsConn *nats.Conn, redisClient *redis.Client, channelBase string, logger zerolog.Logger) Emitter {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".")
	}

	return &emitter{
		nats:        natsConn,
		redis:       redisClient,
		subjectBase: subject,
		channelBase: channelBase,
		logger:      logger.With().Str("component", "event_emitter").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (e *emitter) Publish(ctx context.Context, event string, payload interface{}) {
	body, err := json.Marshal(envelope{
		Source:  e.nodeID,
		Event:   event,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}

	if e.nats != nil && e.subjectBase != "" {
		if err := e.nats.Publish(e.subjectBase+"."+event, body); err != nil {
			e.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to nats")
		}
	}

	if e.redis != nil && e.channelBase != "" {
		if err := e.redis.Publish(ctx, e.channelBase+":"+event, body).Err(); err != nil {
			e.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to redis")
		}
	}
}

// Nop returns an emitter that drops every event. Useful in tests.
func Nop() Emitter {
	return nopEmitter{}
}

type nopEmitter struct{}

func (nopEmitter) Publish(context.Context, string, interface{}) {}
