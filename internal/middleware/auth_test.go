package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/models"
)

func newRouter(t *testing.T, secret string) *mux.Router {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := mux.NewRouter()
	r.Use(RequestLogger(logger))
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(auth.NewVerifier(secret), logger))
	protected.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("principal missing from context")
		}
		_, _ = io.WriteString(w, p.UserID.String())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	router := newRouter(t, "secret")

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token " + token, http.StatusUnauthorized},
		{"invalid", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != c.status {
			t.Errorf("%s: status=%d want %d", c.name, rec.Code, c.status)
		}
		if c.status == http.StatusOK && rec.Body.String() != userID.String() {
			t.Errorf("%s: body=%q", c.name, rec.Body.String())
		}
	}
}
