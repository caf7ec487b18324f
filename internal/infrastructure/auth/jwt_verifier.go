package auth

import (
	"context"
	stderrors "errors"

	"github.com/golang-jwt/jwt/v4"

	"cakemarket/internal/domain/service"
	"cakemarket/pkg/errors"
)

// Claims carried by tokens minted for the marketplace. The account id lives
// in the standard "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (v *JWTVerifier) VerifyToken(ctx context.Context, token string) (*service.VerifiedToken, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return verified(parsed, claims, v.issuer, err)
}

// Sign issues a token for subject. Used by tests and local tooling.
func (v *JWTVerifier) Sign(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func verified(parsed *jwt.Token, claims *Claims, issuer string, err error) (*service.VerifiedToken, error) {
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, errors.TokenInvalid(nil)
	}
	if issuer != "" && !claims.VerifyIssuer(issuer, true) {
		return nil, errors.TokenInvalid(jwt.ErrTokenInvalidIssuer)
	}

	out := &service.VerifiedToken{
		Subject: claims.Subject,
		Claims:  map[string]interface{}{},
	}
	if claims.Role != "" {
		out.Claims["role"] = claims.Role
	}
	if claims.ExpiresAt != nil {
		out.Claims["exp"] = claims.ExpiresAt.Unix()
	}
	return out, nil
}

func classify(err error) error {
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return errors.TokenExpired(err)
	}
	return errors.TokenInvalid(err)
}
