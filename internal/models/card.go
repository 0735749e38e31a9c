package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/apperr"
)

// CardStatus is the lifecycle state of a card
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

// MaskPrefix precedes the last four digits in every displayed card number
const MaskPrefix = "**** **** **** "

// Mask renders last-4 digits in display form
func Mask(last4 string) string {
	if len(last4) != 4 {
		return "****"
	}
	return MaskPrefix + last4
}

// Card represents a bank card
type Card struct {
	ID          uuid.UUID  `json:"id"`
	Number      string     `json:"-"` // Full number, never serialized
	Last4       string     `json:"last4"`
	HolderName  string     `json:"holder_name"`
	ExpiryMonth int        `json:"expiry_month"`
	ExpiryYear  int        `json:"expiry_year"`
	Status      CardStatus `json:"status"`
	Balance     int64      `json:"balance"`
	UserID      uuid.UUID  `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Masked returns the display form of the card number
func (c *Card) Masked() string {
	return Mask(c.Last4)
}

// Block moves an ACTIVE card to BLOCKED.
func (c *Card) Block() error {
	if c.Status == CardStatusBlocked {
		return apperr.Conflict("card", c.ID.String(), "Card already blocked")
	}
	c.Status = CardStatusBlocked
	return nil
}

// Activate moves a BLOCKED card to ACTIVE.
func (c *Card) Activate() error {
	if c.Status == CardStatusActive {
		return apperr.Conflict("card", c.ID.String(), "Card already activated")
	}
	c.Status = CardStatusActive
	return nil
}

// ForceBlock sets BLOCKED whatever the current status is. Used when a block
// request is approved.
func (c *Card) ForceBlock() {
	c.Status = CardStatusBlocked
}

// CardResponse is the masked view of a card returned to callers
type CardResponse struct {
	ID          uuid.UUID  `json:"id"`
	CardNumber  string     `json:"card_number"`
	Last4       string     `json:"last4"`
	HolderName  string     `json:"holder_name"`
	ExpiryMonth int        `json:"expiry_month"`
	ExpiryYear  int        `json:"expiry_year"`
	Status      CardStatus `json:"status"`
	Balance     int64      `json:"balance"`
	CreatedAt   time.Time  `json:"created_at"`
	UserID      uuid.UUID  `json:"user_id"`
}

// Response builds the masked view
func (c *Card) Response() CardResponse {
	return CardResponse{
		ID:          c.ID,
		CardNumber:  c.Masked(),
		Last4:       c.Last4,
		HolderName:  c.HolderName,
		ExpiryMonth: c.ExpiryMonth,
		ExpiryYear:  c.ExpiryYear,
		Status:      c.Status,
		Balance:     c.Balance,
		CreatedAt:   c.CreatedAt,
		UserID:      c.UserID,
	}
}

// CreateCardRequest is the admin payload for issuing a card
type CreateCardRequest struct {
	HolderName string `json:"holder_name"`
}

// CreateCardResponse is shown to the issuing admin once
type CreateCardResponse struct {
	ID           uuid.UUID  `json:"id"`
	MaskedNumber string     `json:"masked_number"`
	HolderName   string     `json:"holder_name"`
	ExpiryMonth  int        `json:"expiry_month"`
	ExpiryYear   int        `json:"expiry_year"`
	Status       CardStatus `json:"status"`
	Balance      int64      `json:"balance"`
}

// CreateResponse builds the creation result view
func (c *Card) CreateResponse() CreateCardResponse {
	return CreateCardResponse{
		ID:           c.ID,
		MaskedNumber: c.Masked(),
		HolderName:   c.HolderName,
		ExpiryMonth:  c.ExpiryMonth,
		ExpiryYear:   c.ExpiryYear,
		Status:       c.Status,
		Balance:      c.Balance,
	}
}

// BalanceResponse represents the result of a balance check
type BalanceResponse struct {
	MaskedCard string `json:"masked_card"`
	Balance    int64  `json:"balance"`
}
