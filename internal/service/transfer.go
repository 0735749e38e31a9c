package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/statement"
)

// TransferService moves funds between cards of one user and keeps the ledger
type TransferService struct {
	base
	rejectBlocked bool
}

// Transfer debits the source card, credits the destination card and appends
// one ledger entry, all in a single unit of work. Both cards are locked
// before their balances are read.
func (s *TransferService) Transfer(ctx context.Context, actor models.Principal, req models.TransferRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperr.Invalid("transfer", "amount must be positive")
	}
	if req.FromCard == req.ToCard {
		return nil, apperr.Invalid("transfer", "sender and receiver cards must differ")
	}

	var entry *models.Transaction
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cards, err := tx.LockCards(ctx, req.FromCard, req.ToCard)
		if err != nil {
			return err
		}
		from, ok := cards[req.FromCard]
		if !ok || from.UserID != actor.UserID {
			return apperr.NotFound("card", req.FromCard.String(), "sender card not found or not yours")
		}
		to, ok := cards[req.ToCard]
		if !ok || to.UserID != actor.UserID {
			return apperr.NotFound("card", req.ToCard.String(), "receiver card not found or not yours")
		}

		if s.rejectBlocked {
			for _, c := range []*models.Card{from, to} {
				if c.Status == models.CardStatusBlocked {
					return apperr.Conflict("card", c.ID.String(), "card is blocked")
				}
			}
		}
		if from.Balance < req.Amount {
			return apperr.InsufficientFunds("card", from.ID.String(), "not enough balance for transaction")
		}
		if to.Balance > math.MaxInt64-req.Amount {
			return apperr.Invalid("transfer", "receiver balance would overflow")
		}

		from.Balance -= req.Amount
		to.Balance += req.Amount
		if err := tx.UpdateCardBalance(ctx, from.ID, from.Balance); err != nil {
			return err
		}
		if err := tx.UpdateCardBalance(ctx, to.ID, to.Balance); err != nil {
			return err
		}

		entry = &models.Transaction{
			ID:            uuid.New(),
			Status:        models.TransactionStatusSuccess,
			Amount:        req.Amount,
			FromCardID:    from.ID,
			FromCardLast4: from.Last4,
			ToCardID:      to.ID,
			ToCardLast4:   to.Last4,
			CreatedAt:     s.now(),
			BalanceAfter:  from.Balance,
		}
		return tx.CreateTransaction(ctx, entry)
	})
	if err != nil {
		return nil, s.fail(err, req.FromCard, "Transfer failed")
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": entry.ID,
		"from":           models.Mask(entry.FromCardLast4),
		"to":             models.Mask(entry.ToCardLast4),
		"amount":         entry.Amount,
	}).Info("Transfer completed")
	s.publish(ctx, models.EventTransferCompleted, entry.Response())
	return entry, nil
}

// CheckBalance returns the masked card and its balance to the card owner
func (s *TransferService) CheckBalance(ctx context.Context, actor models.Principal, cardID uuid.UUID) (models.BalanceResponse, error) {
	card, err := s.ownedCard(ctx, actor, cardID)
	if err != nil {
		return models.BalanceResponse{}, err
	}
	return models.BalanceResponse{MaskedCard: card.Masked(), Balance: card.Balance}, nil
}

// ListTransactions pages over the ledger entries of one of the caller's cards, newest first
func (s *TransferService) ListTransactions(ctx context.Context, actor models.Principal, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transaction], error) {
	_, entries, err := s.history(ctx, actor, cardID, page)
	return entries, err
}

// Statement renders one page of a card's ledger as an XML document
func (s *TransferService) Statement(ctx context.Context, actor models.Principal, cardID uuid.UUID, page models.PageRequest) ([]byte, error) {
	card, entries, err := s.history(ctx, actor, cardID, page)
	if err != nil {
		return nil, err
	}
	return statement.Render(card, entries, s.now())
}

func (s *TransferService) history(ctx context.Context, actor models.Principal, cardID uuid.UUID, page models.PageRequest) (*models.Card, models.Page[models.Transaction], error) {
	var (
		card    *models.Card
		entries models.Page[models.Transaction]
	)
	if err := page.Validate(); err != nil {
		return nil, entries, err
	}

	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		if card, err = getOwnedCard(ctx, tx, actor, cardID); err != nil {
			return err
		}
		entries, err = tx.ListTransactionsByCard(ctx, cardID, page)
		return err
	})
	if err != nil {
		return nil, entries, s.fail(err, cardID, "Failed to list transactions")
	}
	return card, entries, nil
}

func (s *TransferService) ownedCard(ctx context.Context, actor models.Principal, cardID uuid.UUID) (*models.Card, error) {
	var card *models.Card
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		card, err = getOwnedCard(ctx, tx, actor, cardID)
		return err
	})
	if err != nil {
		return nil, s.fail(err, cardID, "Failed to check balance")
	}
	return card, nil
}

func getOwnedCard(ctx context.Context, tx repository.Tx, actor models.Principal, cardID uuid.UUID) (*models.Card, error) {
	card, err := tx.GetCard(ctx, cardID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && card.UserID != actor.UserID) {
		return nil, apperr.NotFound("card", cardID.String(), "card not found or not yours")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}
