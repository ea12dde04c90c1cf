package restive

import (
	"context"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

type loginRequest struct {
	User     string `mapstructure:"user"`
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Hashed   bool   `mapstructure:"hashed"`
}

// addAuthRoutes wires the built-in login and logout endpoints. Called
// from New when default auth is enabled.
func (a *API) addAuthRoutes() error {
	err := a.AddRoute("login", RouteOptions{Hidden: true}, Endpoints{
		http.MethodPost: {Handler: a.loginHandler},
	})
	if err != nil {
		return errors.Wrap(err, "adding login route")
	}

	err = a.AddRoute("logout", RouteOptions{AuthRequired: true, Hidden: true}, Endpoints{
		http.MethodPost: {Handler: a.logoutHandler},
		http.MethodGet:  {Handler: a.deprecatedLogoutHandler},
	})

	return errors.Wrap(err, "adding logout route")
}

// loginHandler accepts user|username|email plus a password (plain or
// pre-hashed digest), delegates verification to the password
// authenticator, and returns the issued token. Collaborator failures
// of type *APIError map directly onto the response status and message.
func (a *API) loginHandler(ctx context.Context, rc *RequestContext) (*Response, error) {
	req := loginRequest{}
	if err := mapstructure.Decode(map[string]interface{}(rc.BodyParams), &req); err != nil {
		return Fail(http.StatusBadRequest, "malformed login request"), nil
	}

	query := UserQuery{}
	switch {
	case req.User != "":
		if strings.Contains(req.User, "@") {
			query.Email = req.User
		} else {
			query.Username = req.User
		}
	case req.Username != "":
		query.Username = req.Username
	case req.Email != "":
		query.Email = req.Email
	}

	password := Password{Plain: req.Password}
	if req.Hashed {
		password = Password{Digest: req.Password}
	}

	result, err := a.opts.Passwords.Authenticate(ctx, query, password)
	if err != nil {
		return nil, errors.Wrap(err, "verifying credentials")
	}

	// resolve the principal for the hook, matching what later requests
	// presenting this token will see
	if result.UserID != "" && result.AuthToken != "" {
		user, err := a.opts.Users.FindByToken(ctx, result.UserID, HashToken(result.AuthToken))
		grip.Debug(message.WrapError(err, message.Fields{
			"message": "problem resolving user after login",
			"user":    result.UserID,
		}))
		rc.User = user
	}

	data := Record{"userId": result.UserID, "authToken": result.AuthToken}
	if hook := a.opts.OnLoggedIn; hook != nil {
		if extra := hook(ctx, rc); extra != nil {
			data["extra"] = extra
		}
	}

	return Success(data), nil
}

// logoutHandler removes the caller's current token from the user
// store. The route requires auth, so a principal is always resolved by
// the time this runs.
func (a *API) logoutHandler(ctx context.Context, rc *RequestContext) (*Response, error) {
	token := rc.Request.Header.Get(a.opts.Auth.TokenHeader)

	if err := a.opts.Users.RemoveToken(ctx, rc.User.ID, HashToken(token)); err != nil {
		return nil, errors.Wrap(err, "removing auth token")
	}

	data := Record{"message": "You've been logged out!"}
	if hook := a.opts.OnLoggedOut; hook != nil {
		if extra := hook(ctx, rc); extra != nil {
			data["extra"] = extra
		}
	}

	return Success(data), nil
}

func (a *API) deprecatedLogoutHandler(ctx context.Context, rc *RequestContext) (*Response, error) {
	grip.Warning("default logout via GET is deprecated, use POST instead")
	return a.logoutHandler(ctx, rc)
}
