// Package identity resolves bearer tokens to workspace users.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"project-workspace-api/internal/response"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// DisplayName falls back to the email when no name was issued.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Claims are the token claims the workspace reads. The user id is taken from
// user_id and falls back to sub.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Validator resolves a raw bearer token.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// JWTValidator validates HMAC-signed tokens locally.
type JWTValidator struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

// NewJWTValidator returns a validator for secret. A non-empty audience must
// appear in the token's aud claim.
func NewJWTValidator(secret, audience string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), audience: audience, leeway: 30 * time.Second}
}

func (v *JWTValidator) ValidateToken(_ context.Context, tokenStr string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, response.NewUnauthorizedError("token expired")
		}
		return nil, response.NewUnauthorizedError("invalid token")
	}

	raw := claims.UserID
	if raw == "" {
		raw = claims.Subject
	}
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return nil, response.NewUnauthorizedError("token carries no valid user id")
	}
	return &Identity{UserID: userID, Email: claims.Email, Name: claims.Name}, nil
}

// Issue signs an HS256 token for id. It backs the development token command and tests.
func (v *JWTValidator) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Name:  id.Name,
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller stored by the auth middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
