package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"cakemarket/internal/domain/service"
	"cakemarket/pkg/errors"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken checks a Firebase ID token. The token's UID is the account id.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (*service.VerifiedToken, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return nil, errors.TokenExpired(err)
		}
		return nil, errors.TokenInvalid(err)
	}

	return &service.VerifiedToken{
		Subject: result.UID,
		Claims:  result.Claims,
	}, nil
}

