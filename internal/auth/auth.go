// Package auth turns bearer tokens issued by the identity provider into the
// calling principal and carries it through request contexts.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/apperr"
	"github.com/Dan9191/card-ledger/internal/models"
)

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal
func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(models.Principal)
	return p, ok
}

// Claims are the token claims the ledger relies on. Subject holds the user id.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with a shared secret
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Verify parses token and returns the principal it names
func (v *Verifier) Verify(token string) (models.Principal, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Principal{}, apperr.Unauthorized("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Principal{}, apperr.Unauthorized("invalid token subject")
	}
	switch claims.Role {
	case models.RoleUser, models.RoleAdmin:
	default:
		return models.Principal{}, apperr.Unauthorized(fmt.Sprintf("unknown role %q", claims.Role))
	}
	return models.Principal{UserID: userID, Role: claims.Role}, nil
}

var errNoPrincipal = apperr.Unauthorized("authentication required")

// Require returns the principal in ctx or an Unauthorized error
func Require(ctx context.Context) (models.Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return models.Principal{}, errNoPrincipal
	}
	return p, nil
}

// RequireAdmin returns the principal in ctx if it holds the ADMIN role
func RequireAdmin(ctx context.Context) (models.Principal, error) {
	p, err := Require(ctx)
	if err != nil {
		return p, err
	}
	if !p.IsAdmin() {
		return p, apperr.Forbidden("administrator role required")
	}
	return p, nil
}
