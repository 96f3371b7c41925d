// Package auth turns raw bearer tokens into user identities. Verification
// is provider-specific: a shared-secret JWT for self-hosted deployments, the
// Firebase Admin SDK when running against Firebase Authentication, or a
// fixed identity when auth is disabled for local development.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates a bearer token and yields the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.UserInfo, error)
}

// JWTVerifier checks HS256 tokens signed with a shared secret. Used by
// self-hosted deployments where the API issues its own tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (*models.UserInfo, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return userFromClaims(claims)
}

// userFromClaims maps token claims onto a UserInfo. The subject is the only
// required claim; email, nickname and groups are carried when present. An
// `admin: true` claim is folded into the admin group so both claim styles
// behave the same downstream.
func userFromClaims(claims map[string]interface{}) (*models.UserInfo, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	user := &models.UserInfo{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if nickname, ok := claims["nickname"].(string); ok {
		user.Nickname = nickname
	} else if name, ok := claims["name"].(string); ok {
		user.Nickname = name
	}
	if rawGroups, ok := claims["groups"].([]interface{}); ok {
		for _, g := range rawGroups {
			if s, ok := g.(string); ok {
				user.Groups = append(user.Groups, s)
			}
		}
	}
	if admin, ok := claims["admin"].(bool); ok && admin && !user.IsAdmin() {
		user.Groups = append(user.Groups, models.AdminGroup)
	}
	return user, nil
}

// StaticVerifier returns a fixed admin identity for every token. Only wired
// when auth is explicitly disabled.
type StaticVerifier struct{}

func (StaticVerifier) Verify(context.Context, string) (*models.UserInfo, error) {
	return &models.UserInfo{
		UserID: "test-user-1",
		Email:  "test@example.com",
		Groups: []string{models.AdminGroup},
	}, nil
}
