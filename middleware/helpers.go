package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const jwtClaimEmail = "email"

var ErrNoIdentity = errors.New("user claims not found in context or invalid type")

// GetIdentityFromContext returns the email claim of the authenticated caller.
func GetIdentityFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", ErrNoIdentity
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims jwt.MapClaims) (string, error) {
	raw, ok := claims[jwtClaimEmail]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimEmail)
	}
	email, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimEmail, raw)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("empty '%s' claim in token", jwtClaimEmail)
	}
	return email, nil
}

// WithIdentity returns a context carrying identity as if it came from a token.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, userContextKey, jwt.MapClaims{jwtClaimEmail: identity})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
