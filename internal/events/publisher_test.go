package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinyyama/unimarket-backend/internal/logging"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "unimarket.events", logging.Discard())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), RoutingMessageSent, NewEnvelope(RoutingMessageSent, "rid", MessagePayload{MessageID: 1})))
	require.NoError(t, p.Close())
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(RoutingConversationCreated, "abc", ConversationPayload{ConversationID: 3})

	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, RoutingConversationCreated, env.EventType)
	assert.Equal(t, "abc", env.RequestID)
	assert.NotEmpty(t, env.OccurredAt)
}
