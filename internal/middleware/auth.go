// Package middleware holds the HTTP middleware of the import server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/charmbracelet/log"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	AuthKey   contextKey = "auth"
)

// ErrInvalidToken is returned by verifiers for unknown or rejected tokens.
var ErrInvalidToken = errors.New("invalid token")

// AuthInfo contains authenticated user information
type AuthInfo struct {
	UserID string
	Email  string
}

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (AuthInfo, error)
}

// IDTokenVerifier is the part of the Firebase auth client the middleware uses.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

var _ IDTokenVerifier = (*auth.Client)(nil)

// FirebaseVerifier verifies Firebase Auth ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

// NewFirebaseVerifier wraps a Firebase auth client.
func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (AuthInfo, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return AuthInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	info := AuthInfo{UserID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		info.Email = email
	}
	return info, nil
}

// StaticVerifier accepts a fixed set of tokens. Meant for local development.
type StaticVerifier map[string]AuthInfo

// ParseStaticTokens reads "token=user[,token=user...]".
func ParseStaticTokens(spec string) (StaticVerifier, error) {
	v := StaticVerifier{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, "=")
		token, user = strings.TrimSpace(token), strings.TrimSpace(user)
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("invalid static token entry %q (expected token=user)", pair)
		}
		v[token] = AuthInfo{UserID: user}
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("no static tokens configured")
	}
	return v, nil
}

func (v StaticVerifier) Verify(ctx context.Context, token string) (AuthInfo, error) {
	info, ok := v[token]
	if !ok {
		return AuthInfo{}, ErrInvalidToken
	}
	return info, nil
}

// AuthMiddleware validates bearer tokens
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid "Bearer <token>" header and
// stores the caller in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		info, err := m.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			log.Debug("token rejected", "path", r.URL.Path, "err", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), AuthKey, info)
		ctx = context.WithValue(ctx, UserIDKey, info.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetAuth retrieves auth info from the request context
func GetAuth(r *http.Request) (AuthInfo, bool) {
	if info, ok := r.Context().Value(AuthKey).(AuthInfo); ok {
		return info, true
	}
	return AuthInfo{}, false
}
