package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateCardNumber is returned when a card number is already taken
	ErrDuplicateCardNumber = errors.New("duplicate card number")
)

// Store opens units of work against the durable record store.
type Store interface {
	// WithinTx runs fn in one atomic unit of work. Every write fn performs is
	// committed if fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only unit of work.
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the set of record operations available inside a unit of work.
type Tx interface {
	// CreateCard inserts a card; ErrDuplicateCardNumber on a number collision.
	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	// LockCards locks the given cards for the rest of the unit of work, in
	// ascending id order, and returns the ones that exist.
	LockCards(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Card, error)
	UpdateCardStatus(ctx context.Context, id uuid.UUID, status models.CardStatus) error
	UpdateCardBalance(ctx context.Context, id uuid.UUID, balance int64) error
	DeleteCard(ctx context.Context, id uuid.UUID) error
	// ListCards pages over all cards, newest first.
	ListCards(ctx context.Context, page models.PageRequest) (models.Page[models.Card], error)
	// ListCardsByOwner pages over one user's cards, newest first.
	ListCardsByOwner(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error)

	CreateBlockRequest(ctx context.Context, req *models.BlockRequest) error
	// LockBlockRequest loads a request and locks it for the rest of the unit of work.
	LockBlockRequest(ctx context.Context, id uuid.UUID) (*models.BlockRequest, error)
	UpdateBlockRequest(ctx context.Context, req *models.BlockRequest) error
	HasPendingBlockRequest(ctx context.Context, cardID uuid.UUID) (bool, error)
	// ListBlockRequests pages over requests, newest first; status may be empty to list all.
	ListBlockRequests(ctx context.Context, status models.RequestStatus, page models.PageRequest) (models.Page[models.BlockRequest], error)

	// CreateTransaction appends a ledger entry. Entries are never updated.
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	// ListTransactionsByCard pages over entries where the card is source or destination, newest first.
	ListTransactionsByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transaction], error)
}
