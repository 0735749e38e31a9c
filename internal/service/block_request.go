package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
)

// BlockRequestService runs the cardholder block request workflow
type BlockRequestService struct {
	base
}

// Submit records a PENDING request by the card owner to block the card
func (s *BlockRequestService) Submit(ctx context.Context, actor models.Principal, cardID uuid.UUID, reason string) (models.BlockRequestResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.BlockRequestResponse{}, apperr.Invalid("block_request", "reason is required")
	}

	var result models.BlockRequestResponse
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		card, err := lockOwnedCard(ctx, tx, cardID, actor.UserID, "card not found or not yours")
		if err != nil {
			return err
		}
		if card.Status == models.CardStatusBlocked {
			return apperr.Conflict("card", cardID.String(), "Card already blocked")
		}
		pending, err := tx.HasPendingBlockRequest(ctx, cardID)
		if err != nil {
			return err
		}
		if pending {
			return apperr.Conflict("block_request", cardID.String(), "block request already pending")
		}

		req := &models.BlockRequest{
			ID:          uuid.New(),
			CardID:      cardID,
			UserID:      actor.UserID,
			Reason:      reason,
			Status:      models.RequestStatusPending,
			RequestedAt: s.now(),
		}
		if err := tx.CreateBlockRequest(ctx, req); err != nil {
			return err
		}
		result = req.Response(card.Last4)
		return nil
	})
	if err != nil {
		return result, s.fail(err, cardID, "Failed to submit block request")
	}

	s.log.WithFields(logrus.Fields{
		"request_id": result.RequestID,
		"card_id":    cardID,
		"user_id":    actor.UserID,
	}).Info("Block request submitted")
	s.publish(ctx, models.EventBlockRequestSubmitted, result)
	return result, nil
}

// Approve resolves a PENDING request and blocks its card in the same unit
// of work. The card is blocked whatever its current status.
func (s *BlockRequestService) Approve(ctx context.Context, actor models.Principal, requestID uuid.UUID) (models.BlockRequestResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return models.BlockRequestResponse{}, err
	}

	var result models.BlockRequestResponse
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := req.Approve(s.now()); err != nil {
			return err
		}
		card, err := lockCard(ctx, tx, req.CardID)
		if err != nil {
			return err
		}

		card.ForceBlock()
		if err := tx.UpdateCardStatus(ctx, card.ID, card.Status); err != nil {
			return err
		}
		if err := tx.UpdateBlockRequest(ctx, req); err != nil {
			return err
		}
		result = req.Response(card.Last4)
		return nil
	})
	if err != nil {
		return result, s.fail(err, requestID, "Failed to approve block request")
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"card_id":    result.CardID,
	}).Info("Block request approved, card blocked")
	s.publish(ctx, models.EventBlockRequestApproved, result)
	return result, nil
}

// Reject resolves a PENDING request without touching the card
func (s *BlockRequestService) Reject(ctx context.Context, actor models.Principal, requestID uuid.UUID) (models.BlockRequestResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return models.BlockRequestResponse{}, err
	}

	var result models.BlockRequestResponse
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		req, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := req.Reject(s.now()); err != nil {
			return err
		}
		if err := tx.UpdateBlockRequest(ctx, req); err != nil {
			return err
		}
		last4, err := cardLast4(ctx, tx, req.CardID)
		if err != nil {
			return err
		}
		result = req.Response(last4)
		return nil
	})
	if err != nil {
		return result, s.fail(err, requestID, "Failed to reject block request")
	}

	s.log.WithField("request_id", requestID).Info("Block request rejected")
	s.publish(ctx, models.EventBlockRequestRejected, result)
	return result, nil
}

// List pages over block requests, newest first. An empty status lists all.
func (s *BlockRequestService) List(ctx context.Context, actor models.Principal, status models.RequestStatus, page models.PageRequest) (models.Page[models.BlockRequestResponse], error) {
	if err := requireAdmin(actor); err != nil {
		return models.Page[models.BlockRequestResponse]{}, err
	}
	return s.list(ctx, status, page)
}

// PendingDigest returns up to MaxPageSize PENDING requests, newest first,
// with their total count. Used by the administrator digest job.
func (s *BlockRequestService) PendingDigest(ctx context.Context) (models.Page[models.BlockRequestResponse], error) {
	return s.list(ctx, models.RequestStatusPending, models.PageRequest{Page: 0, Size: models.MaxPageSize})
}

func (s *BlockRequestService) list(ctx context.Context, status models.RequestStatus, page models.PageRequest) (models.Page[models.BlockRequestResponse], error) {
	if status != "" && !status.Valid() {
		return models.Page[models.BlockRequestResponse]{}, apperr.Invalid("block_request", fmt.Sprintf("unknown status %q", status))
	}
	if err := page.Validate(); err != nil {
		return models.Page[models.BlockRequestResponse]{}, err
	}

	var result models.Page[models.BlockRequestResponse]
	err := s.store.View(ctx, func(tx repository.Tx) error {
		reqs, err := tx.ListBlockRequests(ctx, status, page)
		if err != nil {
			return err
		}
		last4 := make(map[uuid.UUID]string, len(reqs.Items))
		for _, r := range reqs.Items {
			if _, seen := last4[r.CardID]; seen {
				continue
			}
			if last4[r.CardID], err = cardLast4(ctx, tx, r.CardID); err != nil {
				return err
			}
		}
		result = models.MapPage(reqs, func(r models.BlockRequest) models.BlockRequestResponse {
			return r.Response(last4[r.CardID])
		})
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to list block requests")
		return result, fmt.Errorf("failed to list block requests: %w", err)
	}
	return result, nil
}

func lockRequest(ctx context.Context, tx repository.Tx, id uuid.UUID) (*models.BlockRequest, error) {
	req, err := tx.LockBlockRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("block_request", id.String(), "request not found")
	}
	return req, err
}

// cardLast4 returns "" for a card that has since been deleted
func cardLast4(ctx context.Context, tx repository.Tx, id uuid.UUID) (string, error) {
	card, err := tx.GetCard(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return card.Last4, nil
}
