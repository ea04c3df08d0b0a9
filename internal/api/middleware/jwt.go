package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type userIDKey struct{}

// LoadPublicKey reads a PEM-encoded RSA public key from path, for
// verifying JWTs per config.JWTPublicKeyPath.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jwt public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	return key, nil
}

// RequireJWT verifies a bearer token (Authorization header) against
// publicKey using RS256, and rejects the request with 401 if it is
// missing, malformed, expired, or lacks a "user" claim. The claim value is
// stored on the request context and retrievable with GetUserID.
func RequireJWT(publicKey *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifyBearer(r, publicKey)
			if err != nil {
				respondUnauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireJWTCookie verifies the access_token cookie rather than a bearer
// header, for the websocket handshake which cannot set Authorization.
func RequireJWTCookie(publicKey *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("access_token")
			if err != nil {
				respondUnauthorized(w)
				return
			}
			userID, err := verifyToken(cookie.Value, publicKey)
			if err != nil {
				respondUnauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyBearer(r *http.Request, publicKey *rsa.PublicKey) (string, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", jwt.ErrTokenMalformed
	}
	return verifyToken(tokenStr, publicKey)
}

func verifyToken(tokenStr string, publicKey *rsa.PublicKey) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return publicKey, nil
	})
	if err != nil {
		return "", err
	}
	userID, ok := claims["user"].(string)
	if !ok || userID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return userID, nil
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"missing or invalid JWT"}`)) //nolint:errcheck
}

// GetUserID retrieves the "user" claim stored by RequireJWT/RequireJWTCookie.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}
