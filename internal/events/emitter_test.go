package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishMirrorsToRedisChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "arena:events:"+ChallengeUpdated)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	emitter := NewEmitter(nil, client, "arena:events", zerolog.Nop())
	emitter.Publish(ctx, ChallengeUpdated, map[string]uint{"challenge_id": 42})

	msg, err := sub.ReceiveTimeout(ctx, time.Second)
	require.NoError(t, err)
	received, ok := msg.(*redis.Message)
	require.True(t, ok)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(received.Payload), &env))
	assert.Equal(t, ChallengeUpdated, env.Event)
	assert.NotEmpty(t, env.Source)
	assert.False(t, env.SentAt.IsZero())
}

func TestPublishWithoutConnectionsIsSilent(t *testing.T) {
	emitter := NewEmitter(nil, nil, "arena:events", zerolog.Nop())

	emitter.Publish(context.Background(), FinalizationUpdated, nil)
}

func TestNopEmitterDropsEvents(t *testing.T) {
	Nop().Publish(context.Background(), ParticipantJoined, struct{}{})
}
