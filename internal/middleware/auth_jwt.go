package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"calmiverse/internal/domain"
)

const userIDKey ctxKey = "user_id"

// SessionClaims is the token payload issued after a Supabase session
// exchange. Subject holds the internal user id.
type SessionClaims struct {
	Plan   string `json:"plan,omitempty"`
	Locale string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

// SignJWT mints a session token for the given user.
func SignJWT(secret string, u *domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Plan:   string(u.Plan),
		Locale: u.Locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    "calmiverse",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT validates a session token and returns its claims.
func VerifyJWT(secret, token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// AuthJWT rejects requests without a valid Bearer session token and
// injects the user id (and token locale, if present) into the context.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			claims, err := VerifyJWT(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			if claims.Locale != "" {
				ctx = context.WithValue(ctx, LocaleKey, normalizeLocale(claims.Locale))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID is used by tests and internal callers to impersonate
// a user without a token.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
