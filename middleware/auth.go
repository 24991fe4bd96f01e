package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"go.uber.org/zap"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

// TokenVerifier turns a bearer token into the Clerk user id it was issued for.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// VerifyClerkToken checks a session token against Clerk's JWKS. clerk.SetKey
// must have been called first.
func VerifyClerkToken(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type Auth struct {
	verify TokenVerifier
	logger *zap.Logger
}

func NewAuth(verify TokenVerifier, logger *zap.Logger) *Auth {
	if verify == nil {
		verify = VerifyClerkToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{verify: verify, logger: logger}
}

// ClerkAuthMiddleware validates Clerk JWT tokens and stores the Clerk user id
// in the request context.
func (a *Auth) ClerkAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
			return
		}

		clerkID, err := a.verify(r.Context(), token)
		if err != nil || clerkID == "" {
			a.logger.Debug("token verification failed", zap.Error(err))
			respondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := WithClerkID(r.Context(), clerkID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, ClerkIDKey, clerkID)
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok && clerkID != ""
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
