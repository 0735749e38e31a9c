package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/utils"
)

const (
	// MaxCardNumberAttempts bounds number generation when numbers collide
	MaxCardNumberAttempts = 5
	maxHolderNameLength   = 150
)

// CardService owns card issuance, status changes, deletion and lookup
type CardService struct {
	base
	generator NumberGenerator
}

// Create issues an ACTIVE card with zero balance to ownerID. On a number
// collision it retries with a fresh number, each attempt in its own unit of work.
func (s *CardService) Create(ctx context.Context, actor models.Principal, ownerID uuid.UUID, holderName string) (*models.Card, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		return nil, apperr.Invalid("card", "holder name is required")
	}
	if utf8.RuneCountInString(holderName) > maxHolderNameLength {
		return nil, apperr.Invalid("card", fmt.Sprintf("holder name must not exceed %d characters", maxHolderNameLength))
	}

	for attempt := 1; attempt <= MaxCardNumberAttempts; attempt++ {
		number, err := s.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate card number: %w", err)
		}

		now := s.now()
		month, year := utils.GenerateExpiry(now)
		card := &models.Card{
			ID:          uuid.New(),
			Number:      number,
			Last4:       utils.Last4(number),
			HolderName:  holderName,
			ExpiryMonth: month,
			ExpiryYear:  year,
			Status:      models.CardStatusActive,
			Balance:     0,
			UserID:      ownerID,
			CreatedAt:   now,
		}

		err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
			return tx.CreateCard(ctx, card)
		})
		if errors.Is(err, repository.ErrDuplicateCardNumber) {
			s.log.WithField("attempt", attempt).Warnf("Try #%d: duplicated card number, trying again", attempt)
			continue
		}
		if err != nil {
			s.log.WithError(err).Error("Failed to store card")
			return nil, fmt.Errorf("failed to create card: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"card_id": card.ID,
			"user_id": ownerID,
			"card":    card.Masked(),
		}).Info("Card created")
		s.publish(ctx, models.EventCardCreated, card.Response())
		return card, nil
	}

	s.log.WithField("user_id", ownerID).Error("Card number generation exhausted")
	return nil, apperr.GenerationExhausted("Card number generation error")
}

// Delete hard-removes a card. Block requests and ledger entries that
// reference it are kept.
func (s *CardService) Delete(ctx context.Context, actor models.Principal, cardID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var deleted *models.Card
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		card, err := lockCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCard(ctx, cardID); err != nil {
			return err
		}
		deleted = card
		return nil
	})
	if err != nil {
		return s.fail(err, cardID, "Failed to delete card")
	}

	s.log.WithField("card_id", cardID).Info("Card deleted")
	s.publish(ctx, models.EventCardDeleted, models.CardDeletedPayload{
		CardID:     deleted.ID,
		MaskedCard: deleted.Masked(),
		UserID:     deleted.UserID,
	})
	return nil
}

// Block moves an ACTIVE card to BLOCKED; Conflict if it is already blocked
func (s *CardService) Block(ctx context.Context, actor models.Principal, cardID uuid.UUID) (*models.Card, error) {
	return s.transition(ctx, actor, cardID, (*models.Card).Block)
}

// Activate moves a BLOCKED card to ACTIVE; Conflict if it is already active
func (s *CardService) Activate(ctx context.Context, actor models.Principal, cardID uuid.UUID) (*models.Card, error) {
	return s.transition(ctx, actor, cardID, (*models.Card).Activate)
}

func (s *CardService) transition(ctx context.Context, actor models.Principal, cardID uuid.UUID, apply func(*models.Card) error) (*models.Card, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var card *models.Card
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		card, err = lockCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if err := apply(card); err != nil {
			return err
		}
		return tx.UpdateCardStatus(ctx, card.ID, card.Status)
	})
	if err != nil {
		return nil, s.fail(err, cardID, "Failed to change card status")
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "status": card.Status}).Info("Card status changed")
	s.publish(ctx, models.EventCardStatusChanged, card.Response())
	return card, nil
}

// Get returns a card. Administrators see any card; users only their own.
func (s *CardService) Get(ctx context.Context, actor models.Principal, cardID uuid.UUID) (*models.Card, error) {
	var card *models.Card
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		card, err = tx.GetCard(ctx, cardID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("card", cardID.String(), "card not found")
		}
		return err
	})
	if err != nil {
		return nil, s.fail(err, cardID, "Failed to get card")
	}
	if !actor.IsAdmin() && card.UserID != actor.UserID {
		return nil, apperr.NotFound("card", cardID.String(), "card not found")
	}
	return card, nil
}

// List pages over every card, newest first
func (s *CardService) List(ctx context.Context, actor models.Principal, page models.PageRequest) (models.Page[models.Card], error) {
	if err := requireAdmin(actor); err != nil {
		return models.Page[models.Card]{}, err
	}
	if err := page.Validate(); err != nil {
		return models.Page[models.Card]{}, err
	}

	var result models.Page[models.Card]
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		result, err = tx.ListCards(ctx, page)
		return err
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to list cards")
		return result, fmt.Errorf("failed to list cards: %w", err)
	}
	s.log.WithField("total", result.Total).Debug("Listed cards")
	return result, nil
}

// ListForOwner pages over ownerID's cards, newest first. Only the owner may call it.
func (s *CardService) ListForOwner(ctx context.Context, actor models.Principal, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	if actor.UserID != ownerID {
		return models.Page[models.Card]{}, apperr.Forbidden("cards of another user")
	}
	if err := page.Validate(); err != nil {
		return models.Page[models.Card]{}, err
	}

	var result models.Page[models.Card]
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		result, err = tx.ListCardsByOwner(ctx, ownerID, page)
		return err
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to list owner cards")
		return result, fmt.Errorf("failed to list cards: %w", err)
	}
	return result, nil
}

func lockCard(ctx context.Context, tx repository.Tx, id uuid.UUID) (*models.Card, error) {
	cards, err := tx.LockCards(ctx, id)
	if err != nil {
		return nil, err
	}
	card, ok := cards[id]
	if !ok {
		return nil, apperr.NotFound("card", id.String(), "card not found")
	}
	return card, nil
}

// fail logs err at the level its kind deserves and wraps infrastructure errors
func (b base) fail(err error, id uuid.UUID, msg string) error {
	entry := b.log.WithError(err).WithField("id", id)
	if apperr.KindOf(err) != nil {
		entry.Warn(msg)
		return err
	}
	entry.Error(msg)
	return fmt.Errorf("%s: %w", strings.ToLower(msg[:1])+msg[1:], err)
}
