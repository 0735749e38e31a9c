package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/apperr"
)

// RequestStatus is the state of a block request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// BlockRequest is a cardholder's ask to block one of their cards
type BlockRequest struct {
	ID          uuid.UUID     `json:"id"`
	CardID      uuid.UUID     `json:"card_id"`
	UserID      uuid.UUID     `json:"user_id"`
	Reason      string        `json:"reason"`
	Status      RequestStatus `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// Approve resolves a PENDING request as APPROVED.
func (r *BlockRequest) Approve(now time.Time) error {
	return r.resolve(RequestStatusApproved, now)
}

// Reject resolves a PENDING request as REJECTED.
func (r *BlockRequest) Reject(now time.Time) error {
	return r.resolve(RequestStatusRejected, now)
}

func (r *BlockRequest) resolve(to RequestStatus, now time.Time) error {
	if r.Status != RequestStatusPending {
		return apperr.Conflict("block_request", r.ID.String(), "request already processed")
	}
	r.Status = to
	r.ProcessedAt = &now
	return nil
}

// BlockRequestInput is the cardholder payload
type BlockRequestInput struct {
	Reason string `json:"reason"`
}

// BlockRequestResponse is the view returned for submit/approve/reject
type BlockRequestResponse struct {
	RequestID   uuid.UUID     `json:"request_id"`
	CardID      uuid.UUID     `json:"card_id"`
	MaskedCard  string        `json:"masked_card"`
	Reason      string        `json:"reason"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// Response builds the view; last4 comes from the referenced card
func (r *BlockRequest) Response(last4 string) BlockRequestResponse {
	return BlockRequestResponse{
		RequestID:   r.ID,
		CardID:      r.CardID,
		MaskedCard:  Mask(last4),
		Reason:      r.Reason,
		Status:      r.Status,
		CreatedAt:   r.RequestedAt,
		ProcessedAt: r.ProcessedAt,
	}
}
