package restive

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Principal is the resolved caller identity for one request. It is
// constructed fresh by the auth step and never persisted; the user
// store remains authoritative.
type Principal struct {
	ID    string
	Roles []string

	// AuthorizedClients is the allow-list of OAuth client ids this
	// user accepts bearer tokens from. Empty means any client.
	AuthorizedClients []string

	Extra Record
}

// UserStore is the user/credential store collaborator. Lookup methods
// return (nil, nil) when no matching user exists.
type UserStore interface {
	FindByToken(ctx context.Context, userID, hashedToken string) (*Principal, error)
	FindByID(ctx context.Context, userID string) (*Principal, error)
	CreateAccount(ctx context.Context, fields Record) (string, error)
	RemoveToken(ctx context.Context, userID, hashedToken string) error
}

// RoleProvider checks role membership for a resolved principal. A
// principal passes when it holds at least one of the given roles.
type RoleProvider interface {
	HasRole(ctx context.Context, p *Principal, roles []string) (bool, error)
}

// UserQuery identifies the account a login attempt is for. Exactly one
// field is set.
type UserQuery struct {
	Username string
	Email    string
}

// Password carries a login credential: either the plain password or a
// pre-hashed hex sha-256 digest of it.
type Password struct {
	Plain  string
	Digest string
}

// LoginResult is what a successful password authentication yields.
type LoginResult struct {
	UserID    string
	AuthToken string
}

// PasswordAuthenticator verifies credentials and issues session
// tokens. Failures returned as *APIError map their status code and
// message directly onto the login response.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, q UserQuery, p Password) (*LoginResult, error)
}

// HashToken hashes a presented auth token the way user stores are
// expected to persist it: sha-256, base64-encoded.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// resolveUser resolves a principal for the request, or nil for
// anonymous callers. Resolution never fails the request by itself; a
// non-nil error is informational and the principal is simply absent.
// The bearer strategy is selected by request shape when an OAuth
// validator is configured; otherwise credentials come from the
// configured headers.
func (a *API) resolveUser(ctx context.Context, rc *RequestContext) (*Principal, error) {
	if a.opts.Users == nil {
		return nil, nil
	}

	if token := bearerToken(rc.Request); token != "" && a.opts.OAuth != nil {
		return a.resolveBearerUser(ctx, token)
	}

	return a.resolveHeaderUser(ctx, rc)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}

func (a *API) resolveHeaderUser(ctx context.Context, rc *RequestContext) (*Principal, error) {
	var userID, token string
	if extract := a.opts.Auth.Extract; extract != nil {
		userID, token = extract(rc)
	} else {
		userID = rc.Request.Header.Get(a.opts.Auth.UserHeader)
		token = rc.Request.Header.Get(a.opts.Auth.TokenHeader)
	}

	// absent credentials mean an anonymous request, not an error
	if userID == "" || token == "" {
		return nil, nil
	}

	user, err := a.opts.Users.FindByToken(ctx, userID, HashToken(token))

	return user, errors.Wrap(err, "finding user by token")
}

// checkAuthAndRole enforces the action's effective policy. It returns
// 401 for missing principals on auth-required actions and 403 for
// principals lacking every required role.
func (a *API) checkAuthAndRole(ctx context.Context, route *Route, action *EndpointAction, rc *RequestContext) *APIError {
	if route.authRequired(action) && rc.User == nil {
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "You must be logged in to do this."}
	}

	roles := route.requiredRoles(action)
	if len(roles) == 0 {
		return nil
	}

	forbidden := &APIError{StatusCode: http.StatusForbidden, Message: "You do not have permission to do this."}

	if rc.User == nil {
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "You must be logged in to do this."}
	}
	if a.opts.Roles == nil {
		grip.Warning(message.Fields{
			"message": "route requires roles but no role provider is configured",
			"path":    route.Path,
		})
		return forbidden
	}

	ok, err := a.opts.Roles.HasRole(ctx, rc.User, roles)
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message": "problem checking role membership",
			"user":    rc.User.ID,
			"path":    route.Path,
		}))
		return forbidden
	}
	if !ok {
		return forbidden
	}

	return nil
}
