package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

type contextKey int

const userKey contextKey = iota

// UserGetter loads the account named by a token's "user" claim.
type UserGetter interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// IssueToken signs an HS256 token whose "user" claim is userID. A zero ttl issues a token without expiry.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: auth secret is required", shared.ErrInvalidConfig)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user": userID,
		"iat":  now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and returns its "user" claim.
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return "", fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	}
	user, ok := claims["user"].(string)
	if !ok || user == "" {
		return "", fmt.Errorf("%w: token has no user claim", shared.ErrUnauthorized)
	}
	return user, nil
}

// Authenticate requires a valid bearer token on every path except public ones and stores
// the token's user in the request context.
func Authenticate(secret string, users UserGetter, public ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, fmt.Errorf("%w: missing bearer token", shared.ErrUnauthorized))
				return
			}

			userID, err := ParseToken(secret, raw)
			if err != nil {
				writeError(w, err)
				return
			}

			user, err := users.Get(r.Context(), userID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					err = fmt.Errorf("%w: unknown user", shared.ErrUnauthorized)
				}
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated user stored by [Authenticate].
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
