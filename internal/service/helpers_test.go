package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type sequenceGenerator struct {
	mu      sync.Mutex
	numbers []string
	calls   int
	err     error
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	i := g.calls
	if i >= len(g.numbers) {
		i = len(g.numbers) - 1
	}
	g.calls++
	return g.numbers[i], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	store *repository.MemoryStore
	pub   *recordingPublisher
	admin models.Principal
	user  models.Principal
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	pub := &recordingPublisher{}
	if opts.Publisher == nil {
		opts.Publisher = pub
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	return &fixture{
		svc:   NewService(store, log, opts),
		store: store,
		pub:   pub,
		admin: models.Principal{UserID: uuid.New(), Role: models.RoleAdmin},
		user:  models.Principal{UserID: uuid.New(), Role: models.RoleUser},
	}
}

// issue creates a card for owner and funds it directly through the store
func (f *fixture) issue(t *testing.T, owner models.Principal, balance int64) *models.Card {
	t.Helper()
	card, err := f.svc.Cards.Create(context.Background(), f.admin, owner.UserID, "Test Holder")
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if balance > 0 {
		err = f.store.WithinTx(context.Background(), func(tx repository.Tx) error {
			return tx.UpdateCardBalance(context.Background(), card.ID, balance)
		})
		if err != nil {
			t.Fatalf("fund card: %v", err)
		}
		card.Balance = balance
	}
	return card
}

func (f *fixture) card(t *testing.T, id uuid.UUID) *models.Card {
	t.Helper()
	card, err := f.svc.Cards.Get(context.Background(), f.admin, id)
	if err != nil {
		t.Fatalf("get card %s: %v", id, err)
	}
	return card
}

func (f *fixture) ledgerSize() int {
	_, _, n := f.store.Counts()
	return n
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("want %v, got %v", kind, err)
	}
}

func assertMessage(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil || err.Error() != msg {
		t.Fatalf("want message %q, got %v", msg, err)
	}
}
