package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger change
type EventType string

const (
	EventCardCreated           EventType = "card.created"
	EventCardStatusChanged     EventType = "card.status_changed"
	EventCardDeleted           EventType = "card.deleted"
	EventBlockRequestSubmitted EventType = "block_request.submitted"
	EventBlockRequestApproved  EventType = "block_request.approved"
	EventBlockRequestRejected  EventType = "block_request.rejected"
	EventTransferCompleted     EventType = "transfer.completed"
)

// Event is published after the unit of work that caused it commits.
// Payloads only ever carry masked card numbers.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// CardDeletedPayload identifies a removed card
type CardDeletedPayload struct {
	CardID     uuid.UUID `json:"card_id"`
	MaskedCard string    `json:"masked_card"`
	UserID     uuid.UUID `json:"user_id"`
}
