package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	fbauth "firebase.google.com/go/auth"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

// FirebaseVerifier validates Firebase Authentication ID tokens through the
// Admin SDK, which handles the JWKS fetch and signature check itself.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*models.UserInfo, error) {
	decoded, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := decoded.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	claims["sub"] = decoded.UID
	return userFromClaims(claims)
}
