package events

import "time"

const (
	RoutingConversationCreated = "conversation.created"
	RoutingConversationDeleted = "conversation.deleted"
	RoutingMessageSent         = "message.sent"
)

type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	RequestID     string `json:"request_id,omitempty"`
	Payload       any    `json:"payload"`
}

func NewEnvelope(eventType, requestID string, payload any) Envelope {
	return Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:     requestID,
		Payload:       payload,
	}
}

type ConversationPayload struct {
	ConversationID uint64 `json:"conversation_id"`
	ItemID         uint64 `json:"item_id"`
	BuyerID        uint64 `json:"buyer_id"`
	SellerID       uint64 `json:"seller_id"`
	ActorID        uint64 `json:"actor_id"`
}

type MessagePayload struct {
	MessageID      uint64 `json:"message_id"`
	ConversationID uint64 `json:"conversation_id"`
	SenderID       uint64 `json:"sender_id"`
	RecipientID    uint64 `json:"recipient_id"`
	Length         int    `json:"length"`
}
