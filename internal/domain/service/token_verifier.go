package service

import (
	"context"
)

// VerifiedToken is what a successful verification yields.
type VerifiedToken struct {
	Subject string
	Claims  map[string]interface{}
}

// TokenVerifier checks a bearer token. Implementations return
// errors.TokenExpired for expired tokens and errors.TokenInvalid otherwise.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*VerifiedToken, error)
}
