package usecase

import (
	"context"

	"cakemarket/internal/domain/repository"
	"cakemarket/internal/domain/service"
	"cakemarket/pkg/errors"
)

// Identity is the authenticated caller attached to a connection or request.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type AuthUseCase struct {
	verifier service.TokenVerifier
	userRepo repository.UserRepository
}

func NewAuthUseCase(verifier service.TokenVerifier, userRepo repository.UserRepository) *AuthUseCase {
	return &AuthUseCase{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// Authenticate verifies token and resolves its subject to an account. Each
// failure has its own code: TOKEN_MISSING, TOKEN_EXPIRED, TOKEN_INVALID or
// IDENTITY_NOT_FOUND.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, errors.TokenMissing()
	}

	verified, err := uc.verifier.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, errors.CodeTokenExpired) || errors.Is(err, errors.CodeTokenInvalid) {
			return nil, err
		}
		return nil, errors.TokenInvalid(err)
	}
	if verified.Subject == "" {
		return nil, errors.TokenInvalid(nil)
	}

	user, err := uc.userRepo.GetByID(ctx, verified.Subject)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.IdentityNotFound(verified.Subject, err)
		}
		return nil, errors.Internal("Failed to resolve identity", err)
	}

	return &Identity{
		UserID: user.ID,
		Role:   user.Role,
	}, nil
}
