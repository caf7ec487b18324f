package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"cakemarket/internal/domain/service"
	"cakemarket/pkg/logger"
)

// JWKSVerifier validates RS/ES signed tokens from an identity provider that
// publishes its keys as a JWKS document.
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	issuer string
}

func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string) (*JWKSVerifier, error) {
	logger.Info("Loading JWKS from %s", jwksURL)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   5 * time.Minute,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}

	return &JWKSVerifier{
		jwks:   jwks,
		issuer: issuer,
	}, nil
}

func (v *JWKSVerifier) VerifyToken(ctx context.Context, token string) (*service.VerifiedToken, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc)
	return verified(parsed, claims, v.issuer, err)
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}
