package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerAuth guards admin routes with a static token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	errMissingToken  = errors.New("missing reviewer token")
	errInvalidToken  = errors.New("invalid reviewer token")
	errMissingSecret = errors.New("reviewer token secret not configured")
)

// ReviewerClaims identifies a reviewer. The subject is the reviewer id.
type ReviewerClaims struct {
	jwt.RegisteredClaims
}

// IssueReviewerToken signs an HS256 token for reviewerID. A zero ttl issues
// a token without expiry.
func IssueReviewerToken(secret []byte, issuer, reviewerID string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errMissingSecret
	}
	if reviewerID == "" {
		return "", fmt.Errorf("reviewer id is required")
	}
	claims := ReviewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  reviewerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseReviewerToken validates a token and returns its reviewer id.
func ParseReviewerToken(secret []byte, issuer, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", errMissingToken
	}
	if len(secret) == 0 {
		return "", errMissingSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &ReviewerClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*ReviewerClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

type reviewerKey struct{}

// ReviewerAuth resolves the reviewer identity from a bearer JWT. Requests
// without a valid token are rejected before any handler runs.
func ReviewerAuth(secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			tokenStr, _ := strings.CutPrefix(auth, "Bearer ")
			if tokenStr == auth {
				tokenStr = ""
			}
			reviewer, err := ParseReviewerToken(secret, issuer, tokenStr)
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), reviewer)))
		})
	}
}

// WithReviewer attaches a reviewer id to ctx.
func WithReviewer(ctx context.Context, reviewerID string) context.Context {
	return context.WithValue(ctx, reviewerKey{}, reviewerID)
}

// ReviewerFrom returns the reviewer id attached by ReviewerAuth, or "".
func ReviewerFrom(ctx context.Context) string {
	id, _ := ctx.Value(reviewerKey{}).(string)
	return id
}
