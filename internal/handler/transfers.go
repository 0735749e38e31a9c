package handler

import (
	"net/http"

	"github.com/Dan9191/card-ledger/internal/models"
)

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.svc.Transfers.Transfer(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry.Response())
}

func (h *Handler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}

	balance, err := h.svc.Transfers.CheckBalance(r.Context(), actor, cardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.svc.Transfers.ListTransactions(r.Context(), actor, cardID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.MapPage(entries, transferResponse))
}

// Statement returns one page of the card ledger as XML
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc, err := h.svc.Transfers.Statement(r.Context(), actor, cardID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		h.logger.WithError(err).Error("Failed to write statement")
	}
}

func transferResponse(t models.Transaction) models.TransferResponse {
	return t.Response()
}
