package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/models"
)

// MemoryStore is an in-process Store. Units of work are serialized by one
// lock and applied to a copy of the state that replaces the live state only
// on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState

	// BeforeWrite, when set, runs before every write with the operation name.
	// A non-nil error aborts the write and fails the unit of work.
	BeforeWrite func(op string) error
}

type memState struct {
	cards        map[uuid.UUID]models.Card
	numbers      map[string]uuid.UUID
	requests     map[uuid.UUID]models.BlockRequest
	transactions []models.Transaction
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		cards:    map[uuid.UUID]models.Card{},
		numbers:  map[string]uuid.UUID{},
		requests: map[uuid.UUID]models.BlockRequest{},
	}}
}

func (s memState) clone() memState {
	out := memState{
		cards:        make(map[uuid.UUID]models.Card, len(s.cards)),
		numbers:      make(map[string]uuid.UUID, len(s.numbers)),
		requests:     make(map[uuid.UUID]models.BlockRequest, len(s.requests)),
		transactions: make([]models.Transaction, len(s.transactions)),
	}
	for k, v := range s.cards {
		out.cards[k] = v
	}
	for k, v := range s.numbers {
		out.numbers[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	copy(out.transactions, s.transactions)
	return out
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// WithinTx runs fn on a private copy of the state under the write lock. The
// copy replaces the live state only when fn succeeds and ctx is still live.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone(), hook: m.BeforeWrite}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// View runs fn against the live state under the read lock. Writes panic.
func (m *MemoryStore) View(_ context.Context, fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{state: m.state, readOnly: true})
}

// Counts reports how many cards, block requests and ledger entries are stored
func (m *MemoryStore) Counts() (cards, requests, transactions int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.cards), len(m.state.requests), len(m.state.transactions)
}

type memTx struct {
	state    memState
	hook     func(op string) error
	readOnly bool
}

func (t *memTx) write(op string) error {
	if t.readOnly {
		panic("repository: write " + op + " in read-only unit of work")
	}
	if t.hook != nil {
		return t.hook(op)
	}
	return nil
}

func (t *memTx) CreateCard(_ context.Context, card *models.Card) error {
	if err := t.write("CreateCard"); err != nil {
		return err
	}
	if _, taken := t.state.numbers[card.Number]; taken {
		return ErrDuplicateCardNumber
	}
	t.state.cards[card.ID] = *card
	t.state.numbers[card.Number] = card.ID
	return nil
}

func (t *memTx) GetCard(_ context.Context, id uuid.UUID) (*models.Card, error) {
	card, ok := t.state.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &card, nil
}

func (t *memTx) LockCards(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Card, error) {
	cards := make(map[uuid.UUID]*models.Card, len(ids))
	for _, id := range ids {
		if card, ok := t.state.cards[id]; ok {
			cards[id] = &card
		}
	}
	return cards, nil
}

func (t *memTx) UpdateCardStatus(_ context.Context, id uuid.UUID, status models.CardStatus) error {
	if err := t.write("UpdateCardStatus"); err != nil {
		return err
	}
	card, ok := t.state.cards[id]
	if !ok {
		return ErrNotFound
	}
	card.Status = status
	t.state.cards[id] = card
	return nil
}

func (t *memTx) UpdateCardBalance(_ context.Context, id uuid.UUID, balance int64) error {
	if err := t.write("UpdateCardBalance"); err != nil {
		return err
	}
	card, ok := t.state.cards[id]
	if !ok {
		return ErrNotFound
	}
	card.Balance = balance
	t.state.cards[id] = card
	return nil
}

func (t *memTx) DeleteCard(_ context.Context, id uuid.UUID) error {
	if err := t.write("DeleteCard"); err != nil {
		return err
	}
	if _, ok := t.state.cards[id]; !ok {
		return ErrNotFound
	}
	// The number stays in t.state.numbers: numbers are unique across all
	// cards ever created.
	delete(t.state.cards, id)
	return nil
}

func paginate[T any](items []T, page models.PageRequest) models.Page[T] {
	result := models.Page[T]{Items: []T{}, Page: page.Page, Size: page.Size, Total: len(items)}
	start := page.Offset()
	if start >= len(items) {
		return result
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	result.Items = append(result.Items, items[start:end]...)
	return result
}

func (t *memTx) sortedCards(keep func(models.Card) bool) []models.Card {
	cards := make([]models.Card, 0, len(t.state.cards))
	for _, c := range t.state.cards {
		if keep(c) {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.After(cards[j].CreatedAt)
		}
		return cards[i].ID.String() < cards[j].ID.String()
	})
	return cards
}

func (t *memTx) ListCards(_ context.Context, page models.PageRequest) (models.Page[models.Card], error) {
	return paginate(t.sortedCards(func(models.Card) bool { return true }), page), nil
}

func (t *memTx) ListCardsByOwner(_ context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return paginate(t.sortedCards(func(c models.Card) bool { return c.UserID == userID }), page), nil
}

func (t *memTx) CreateBlockRequest(_ context.Context, req *models.BlockRequest) error {
	if err := t.write("CreateBlockRequest"); err != nil {
		return err
	}
	t.state.requests[req.ID] = *req
	return nil
}

func (t *memTx) LockBlockRequest(_ context.Context, id uuid.UUID) (*models.BlockRequest, error) {
	req, ok := t.state.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (t *memTx) UpdateBlockRequest(_ context.Context, req *models.BlockRequest) error {
	if err := t.write("UpdateBlockRequest"); err != nil {
		return err
	}
	if _, ok := t.state.requests[req.ID]; !ok {
		return ErrNotFound
	}
	t.state.requests[req.ID] = *req
	return nil
}

func (t *memTx) HasPendingBlockRequest(_ context.Context, cardID uuid.UUID) (bool, error) {
	for _, r := range t.state.requests {
		if r.CardID == cardID && r.Status == models.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListBlockRequests(_ context.Context, status models.RequestStatus, page models.PageRequest) (models.Page[models.BlockRequest], error) {
	reqs := make([]models.BlockRequest, 0, len(t.state.requests))
	for _, r := range t.state.requests {
		if status == "" || r.Status == status {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].RequestedAt.After(reqs[j].RequestedAt)
		}
		return reqs[i].ID.String() < reqs[j].ID.String()
	})
	return paginate(reqs, page), nil
}

func (t *memTx) CreateTransaction(_ context.Context, tr *models.Transaction) error {
	if err := t.write("CreateTransaction"); err != nil {
		return err
	}
	t.state.transactions = append(t.state.transactions, *tr)
	return nil
}

func (t *memTx) ListTransactionsByCard(_ context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transaction], error) {
	var entries []models.Transaction
	// Appended in commit order; walk backwards for newest first.
	for i := len(t.state.transactions) - 1; i >= 0; i-- {
		tr := t.state.transactions[i]
		if tr.FromCardID == cardID || tr.ToCardID == cardID {
			entries = append(entries, tr)
		}
	}
	return paginate(entries, page), nil
}
