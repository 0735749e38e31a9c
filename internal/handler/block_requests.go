package handler

import (
	"net/http"
	"strings"

	"github.com/Dan9191/card-ledger/internal/models"
)

// SubmitBlockRequest asks an administrator to block one of the caller's cards
func (h *Handler) SubmitBlockRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r, "cardId")
	if !ok {
		return
	}
	var req models.BlockRequestInput
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.svc.BlockRequests.Submit(r.Context(), actor, cardID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// ListBlockRequests accepts an optional status filter
func (h *Handler) ListBlockRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := models.RequestStatus(strings.ToUpper(r.URL.Query().Get("status")))

	reqs, err := h.svc.BlockRequests.List(r.Context(), actor, status, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) ApproveBlockRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, "requestId")
	if !ok {
		return
	}

	resp, err := h.svc.BlockRequests.Approve(r.Context(), actor, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RejectBlockRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, "requestId")
	if !ok {
		return
	}

	resp, err := h.svc.BlockRequests.Reject(r.Context(), actor, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}
