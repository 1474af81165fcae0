package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

type AuthManager struct {
	secret []byte
	ttl    time.Duration
	dev    bool
}

func NewAuthManager(secret string, ttl time.Duration, dev bool) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl, dev: dev}
}

type ChatClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Mint issues a bearer token for userID. The surrounding product's login
// flow calls this; it is also handy for local testing.
func (a *AuthManager) Mint(userID int64) (string, error) {
	now := time.Now()
	claims := ChatClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) parse(tok string) (*ChatClaims, error) {
	claims := &ChatClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserFromRequest resolves the authenticated user id.
// Authorization: Bearer <jwt>; in dev mode an X-User-ID header works too.
func (a *AuthManager) UserFromRequest(r *http.Request) (int64, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			claims, err := a.parse(strings.TrimSpace(hdr[7:]))
			if err != nil {
				return 0, err
			}
			return claims.UserID, nil
		}
	}
	if a.dev {
		if v := r.Header.Get("X-User-ID"); v != "" {
			return strconv.ParseInt(v, 10, 64)
		}
	}
	return 0, errors.New("missing token")
}

type ctxKey int

const ctxUserID ctxKey = iota

// Middleware rejects unauthenticated requests and stashes the user id in
// the request context.
func (a *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.UserFromRequest(r)
		if err != nil || userID <= 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, userID)))
	})
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(ctx context.Context) int64 {
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		return v
	}
	return 0
}
