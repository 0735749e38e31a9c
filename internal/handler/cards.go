package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/models"
)

type statusChange func(ctx context.Context, actor models.Principal, cardID uuid.UUID) (*models.Card, error)

func cardResponse(c models.Card) models.CardResponse {
	return c.Response()
}

// CreateCard issues a card to the user in the path
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	ownerID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	var req models.CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}

	card, err := h.svc.Cards.Create(r.Context(), actor, ownerID, req.HolderName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, card.CreateResponse())
}

func (h *Handler) ListAllCards(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cards, err := h.svc.Cards.List(r.Context(), actor, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.MapPage(cards, cardResponse))
}

// ListMyCards lists the caller's own cards
func (h *Handler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cards, err := h.svc.Cards.ListForOwner(r.Context(), actor, actor.UserID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.MapPage(cards, cardResponse))
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := h.svc.Cards.Get(r.Context(), actor, cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card.Response())
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}

	if err := h.svc.Cards.Delete(r.Context(), actor, cardID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.svc.Cards.Block)
}

func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.svc.Cards.Activate)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, change statusChange) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := change(r.Context(), actor, cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card.Response())
}
