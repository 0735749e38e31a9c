package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/service"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

// Pinger reports whether the record store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc    *service.Service
	health Pinger
	logger *logrus.Logger
}

func NewHandler(svc *service.Service, health Pinger, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, health: health, logger: logger}
}

// RegisterRoutes mounts the public health check and the authenticated API on router
func (h *Handler) RegisterRoutes(router *mux.Router, authMiddleware mux.MiddlewareFunc) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/cards", h.ListAllCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{userId}", h.CreateCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards/{cardId}", h.GetCard).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{cardId}", h.DeleteCard).Methods(http.MethodDelete)
	admin.HandleFunc("/cards/{cardId}/block", h.BlockCard).Methods(http.MethodPatch)
	admin.HandleFunc("/cards/{cardId}/activate", h.ActivateCard).Methods(http.MethodPatch)
	admin.HandleFunc("/block-requests", h.ListBlockRequests).Methods(http.MethodGet)
	admin.HandleFunc("/block-requests/{requestId}/approve", h.ApproveBlockRequest).Methods(http.MethodPatch)
	admin.HandleFunc("/block-requests/{requestId}/reject", h.RejectBlockRequest).Methods(http.MethodPatch)

	api.HandleFunc("/cards", h.ListMyCards).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardId}", h.GetCard).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardId}/block-request", h.SubmitBlockRequest).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardId}/balance", h.CheckBalance).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardId}/transactions", h.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardId}/statement.xml", h.Statement).Methods(http.MethodGet)
	api.HandleFunc("/transfer", h.Transfer).Methods(http.MethodPost)
}

// Health checks store connectivity
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Error("Health check failed")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequireAdmin(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, err := auth.Require(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return p, false
	}
	return p, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		h.writeError(w, r, apperr.Invalid(name, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads exactly one JSON value of at most maxBodyBytes
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	if err == nil {
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("unexpected data after JSON body")
		}
	}
	if err != nil {
		h.logger.WithError(err).Warn("Failed to decode request")
		msg := "invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		h.writeError(w, r, apperr.Invalid("request", msg))
		return false
	}
	return true
}

// pageRequest reads page and size query parameters; range checks happen in the services
func pageRequest(r *http.Request) (models.PageRequest, error) {
	page := models.PageRequest{Page: 0, Size: models.DefaultPageSize}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, apperr.Invalid("page", "page must be an integer")
		}
		page.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, apperr.Invalid("page", "size must be an integer")
		}
		page.Size = n
	}
	return page, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrInsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperr.ErrGenerationExhausted:
		return http.StatusServiceUnavailable
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: apperr.Code(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		body.Message = "internal error"
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
