package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/json"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
)

// Identity is the authenticated caller. Anonymous identities are allowed on
// the paste endpoints only.
type Identity struct {
	UserID      string
	DisplayName string
	Anonymous   bool
}

type ctxKey struct{}

// Claims carried in the bearer token. Subject is the user ID.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	logger logging.Logger
}

func New(secret string, logger logging.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// IssueToken signs a token for the given user. Used by tests and tooling;
// production tokens come from the identity provider sharing the secret.
func (a *Authenticator) IssueToken(userID, displayName string, ttl time.Duration) (string, error) {
	claims := Claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("invalid token")
	}

	name := claims.DisplayName
	if name == "" {
		name = claims.Subject
	}
	return Identity{UserID: claims.Subject, DisplayName: name}, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Require rejects requests without a valid bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			json.WriteError(w, http.StatusUnauthorized, nil, "authentication required")
			return
		}

		id, err := a.parse(token)
		if err != nil {
			a.logger.Warn(logging.General, logging.Auth, "rejected bearer token", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
				logging.Path:         r.URL.Path,
			})
			json.WriteError(w, http.StatusUnauthorized, err, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional attaches the identity when a valid token is present and falls back
// to the anonymous identity otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{UserID: domain.AnonymousUser, DisplayName: domain.AnonymousUser, Anonymous: true}
		if token := bearerToken(r); token != "" {
			if parsed, err := a.parse(token); err == nil {
				id = parsed
			}
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity set by Require or Optional.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
