package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/utils"
)

// NumberGenerator produces candidate card numbers. It may return a number
// already in use.
type NumberGenerator interface {
	Generate() (string, error)
}

// defaultPublishTimeout bounds one event delivery after commit
const defaultPublishTimeout = 5 * time.Second

// EventPublisher delivers committed changes to downstream consumers. Publish
// runs after the change is committed and is cut off after Options.PublishTimeout.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }

// Options tunes the services. Zero values select the defaults.
type Options struct {
	Generator NumberGenerator
	Publisher EventPublisher
	Clock     func() time.Time
	// PublishTimeout bounds each event publish; zero means 5s
	PublishTimeout time.Duration
	// RejectBlockedTransfers makes transfers touching a BLOCKED card fail
	RejectBlockedTransfers bool
}

// Service groups the card ledger operations
type Service struct {
	Cards         *CardService
	BlockRequests *BlockRequestService
	Transfers     *TransferService
}

// NewService initializes the card, block-request and transfer services over one store
func NewService(store repository.Store, log *logrus.Logger, opts Options) *Service {
	b := newBase(store, log, opts)
	gen := opts.Generator
	if gen == nil {
		gen = utils.NumberGenerator{}
	}
	return &Service{
		Cards:         &CardService{base: b, generator: gen},
		BlockRequests: &BlockRequestService{base: b},
		Transfers:     &TransferService{base: b, rejectBlocked: opts.RejectBlockedTransfers},
	}
}

type base struct {
	store     repository.Store
	log       *logrus.Logger
	publisher EventPublisher
	now       func() time.Time
	timeout   time.Duration
}

func newBase(store repository.Store, log *logrus.Logger, opts Options) base {
	b := base{store: store, log: log, publisher: opts.Publisher, now: opts.Clock, timeout: opts.PublishTimeout}
	if b.timeout <= 0 {
		b.timeout = defaultPublishTimeout
	}
	if b.publisher == nil {
		b.publisher = nopPublisher{}
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	return b
}

// publish is best effort: the change it reports is already committed.
// Cancelling the request does not cancel the publish; the timeout does.
func (b base) publish(ctx context.Context, typ models.EventType, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	event := models.Event{ID: uuid.New(), Type: typ, OccurredAt: b.now(), Payload: payload}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.log.WithError(err).WithField("event", typ).Error("Failed to publish event")
	}
}

func requireAdmin(actor models.Principal) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}

// lockOwnedCard locks one card and hides it from callers who do not own it
func lockOwnedCard(ctx context.Context, tx repository.Tx, id, owner uuid.UUID, msg string) (*models.Card, error) {
	cards, err := tx.LockCards(ctx, id)
	if err != nil {
		return nil, err
	}
	card, ok := cards[id]
	if !ok || card.UserID != owner {
		return nil, apperr.NotFound("card", id.String(), msg)
	}
	return card, nil
}
