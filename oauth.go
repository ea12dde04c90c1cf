package restive

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// AccessToken is the record an OAuth token validator returns for an
// opaque bearer token.
type AccessToken struct {
	ExpiresAt time.Time
	UserID    string
	ClientID  string
}

// TokenValidator is the external OAuth collaborator. GetAccessToken
// returns (nil, nil) when the token is unknown.
type TokenValidator interface {
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)
}

// resolveBearerUser resolves a principal from an opaque bearer token.
// This path is stricter than header resolution: an unknown or expired
// token, a missing user, or a client outside the user's allow-list all
// leave the request anonymous.
func (a *API) resolveBearerUser(ctx context.Context, token string) (*Principal, error) {
	accessToken, err := a.opts.OAuth.GetAccessToken(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "fetching access token")
	}
	if accessToken == nil {
		return nil, errors.New("access token not found")
	}

	if time.Now().After(accessToken.ExpiresAt) {
		return nil, errors.New("access token expired")
	}

	user, err := a.opts.Users.FindByID(ctx, accessToken.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "finding user for access token")
	}
	if user == nil {
		return nil, errors.Errorf("no user '%s' for access token", accessToken.UserID)
	}

	if len(user.AuthorizedClients) > 0 {
		authorized := false
		for _, client := range user.AuthorizedClients {
			if client == accessToken.ClientID {
				authorized = true
				break
			}
		}
		if !authorized {
			return nil, errors.Errorf("client '%s' is not authorized for user '%s'",
				accessToken.ClientID, user.ID)
		}
	}

	return user, nil
}
