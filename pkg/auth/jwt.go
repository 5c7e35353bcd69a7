package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const operatorKey ctxKey = 1

// WithOperator adds an operator ID to the context
func WithOperator(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operatorKey, id)
}

// OperatorID extracts the operator ID from the context, defaults to "anon"
func OperatorID(ctx context.Context) string {
	v := ctx.Value(operatorKey)
	if v == nil {
		return "anon"
	}
	return v.(string)
}

// JWT wraps a signing secret for issuing/verifying operator tokens for the
// cleanup admin surface
type JWT struct{ secret []byte }

// New creates a new JWT signer/verifier.
func New(secret string) *JWT { return &JWT{secret: []byte(secret)} }

// Verify checks a token and returns the sub (operator ID) claim. Tokens
// without the admin scope are rejected.
func (j *JWT) Verify(tok string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return "", err
	}
	if scope, _ := claims["scope"].(string); scope != "admin" {
		return "", errors.New("missing admin scope")
	}
	id, _ := claims["sub"].(string)
	if id == "" {
		return "", errors.New("no sub")
	}
	return id, nil
}

// Sign creates an admin-scoped token for an operator with the given TTL
func (j *JWT) Sign(operatorID string, ttl time.Duration) (string, error) {
	if operatorID == "" {
		return "", errors.New("empty operator id")
	}
	claims := jwt.MapClaims{
		"sub":   operatorID,
		"scope": "admin",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(j.secret)
}
