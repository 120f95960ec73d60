package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const userIDKey ctxKey = iota

// staticTokenUserID is the user every request authenticated with the
// shared static token runs as.
const staticTokenUserID int64 = 1

// MintToken signs an HS256 token for the given user, valid for ttl.
func MintToken(secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, raw string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

// auth requires a Bearer token on every request. The shared static
// token (if configured) maps to a single fixed user; otherwise the
// token must be a signed JWT carrying the user id as its subject.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		gotToken := strings.TrimPrefix(header, "Bearer ")

		if s.cfg.Server.AuthToken != "" &&
			subtle.ConstantTimeCompare([]byte(gotToken), []byte(s.cfg.Server.AuthToken)) == 1 {
			next(w, r.WithContext(withUserID(r.Context(), staticTokenUserID)))
			return
		}

		if s.cfg.Server.AuthSecret != "" {
			userID, err := parseToken(s.cfg.Server.AuthSecret, gotToken)
			if err == nil {
				next(w, r.WithContext(withUserID(r.Context(), userID)))
				return
			}
		}

		writeError(w, http.StatusUnauthorized, "invalid token")
	}
}

func withUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func requestUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}
