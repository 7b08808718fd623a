package services

import (
	"context"

	"github.com/techagentng/citizenchat/config"
	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"github.com/techagentng/citizenchat/services/jwt"
)

// IdentityGateway resolves a presented credential to an identity.
type IdentityGateway interface {
	Verify(ctx context.Context, credential string) (*models.Identity, error)
}

// AuthService verifies access tokens issued by the account service.
type AuthService interface {
	IdentityGateway
	IssueToken(identity *models.Identity) (string, error)
}

type authService struct {
	Config *config.Config
}

func NewAuthService(conf *config.Config) AuthService {
	return &authService{Config: conf}
}

func (a *authService) Verify(_ context.Context, credential string) (*models.Identity, error) {
	if credential == "" {
		return nil, errs.Unauthenticated("missing access token")
	}
	if a.Config.JWTSecret == "" {
		return nil, errs.Unauthenticated("token verification is not configured")
	}
	claims, err := jwt.ValidateAndGetClaims(credential, a.Config.JWTSecret)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnauthenticated, "invalid access token", err)
	}

	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return nil, errs.Unauthenticated("access token carries no user id")
	}
	identity := &models.Identity{ID: uint(id)}
	identity.Username, _ = claims["username"].(string)
	identity.Fullname, _ = claims["fullname"].(string)
	return identity, nil
}

// IssueToken signs a token for identity. The account service owns login;
// this exists for tooling and tests.
func (a *authService) IssueToken(identity *models.Identity) (string, error) {
	return jwt.GenerateToken(identity.ID, identity.Username, identity.Fullname, a.Config.JWTSecret)
}
