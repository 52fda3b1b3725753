// Package identity supplies the current principal to the engine.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"questguild/internal/apperr"
)

// Provider returns the user id of the current principal.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// ErrNotLoggedIn is returned when no principal is available.
var ErrNotLoggedIn = apperr.New(apperr.CodeNotLoggedIn, "not logged in")

type userIDContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// Context reads the principal placed on the context by WithUserID.
type Context struct{}

func (Context) CurrentUserID(ctx context.Context) (string, error) {
	if id := UserIDFromContext(ctx); id != "" {
		return id, nil
	}
	return "", ErrNotLoggedIn
}

// Static always reports the same principal; an empty id means logged out.
type Static string

func (s Static) CurrentUserID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNotLoggedIn
	}
	return id, nil
}

// Chain asks each provider in order and returns the first principal found.
type Chain []Provider

func (c Chain) CurrentUserID(ctx context.Context) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		id, err := p.CurrentUserID(ctx)
		if err == nil {
			return id, nil
		}
		if !apperr.HasCode(err, apperr.CodeNotLoggedIn) {
			return "", err
		}
	}
	return "", ErrNotLoggedIn
}

// JWT resolves the principal from an HS256 session token. The subject claim
// carries the user id.
type JWT struct {
	Token  string
	Secret []byte
	Now    func() time.Time
}

func (j JWT) CurrentUserID(context.Context) (string, error) {
	token := strings.TrimSpace(j.Token)
	if token == "" {
		return "", ErrNotLoggedIn
	}
	if len(j.Secret) == 0 {
		return "", errors.New("session secret is not configured")
	}
	now := j.Now
	if now == nil {
		now = time.Now
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeNotLoggedIn, "invalid session token", err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", apperr.New(apperr.CodeNotLoggedIn, "session token has no subject")
	}
	return sub, nil
}

// IssueToken signs a session token for userID. It is used by the CLI login
// helper and by tests.
func IssueToken(userID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
