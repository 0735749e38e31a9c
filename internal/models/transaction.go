package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the outcome recorded in the ledger
type TransactionStatus string

// TransactionStatusSuccess is the only persisted outcome; failed transfers write nothing.
const TransactionStatusSuccess TransactionStatus = "SUCCESS"

// Transaction is an immutable ledger entry for one transfer
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Status        TransactionStatus `json:"status"`
	Amount        int64             `json:"amount"`
	FromCardID    uuid.UUID         `json:"from_card_id"`
	FromCardLast4 string            `json:"from_card_last4"`
	ToCardID      uuid.UUID         `json:"to_card_id"`
	ToCardLast4   string            `json:"to_card_last4"`
	CreatedAt     time.Time         `json:"created_at"`
	BalanceAfter  int64             `json:"balance_after"`
}

// TransferRequest is the cardholder payload for a transfer
type TransferRequest struct {
	FromCard uuid.UUID `json:"from_card"`
	ToCard   uuid.UUID `json:"to_card"`
	Amount   int64     `json:"amount"`
}

// TransferResponse is the masked view of a ledger entry
type TransferResponse struct {
	ID              uuid.UUID         `json:"id"`
	Status          TransactionStatus `json:"status"`
	Amount          int64             `json:"amount"`
	FromCard        string            `json:"from_card"`
	ToCard          string            `json:"to_card"`
	TransactionDate time.Time         `json:"transaction_date"`
	BalanceAfter    int64             `json:"balance_after"`
}

// Response builds the masked view
func (t *Transaction) Response() TransferResponse {
	return TransferResponse{
		ID:              t.ID,
		Status:          t.Status,
		Amount:          t.Amount,
		FromCard:        Mask(t.FromCardLast4),
		ToCard:          Mask(t.ToCardLast4),
		TransactionDate: t.CreatedAt,
		BalanceAfter:    t.BalanceAfter,
	}
}
