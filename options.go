package restive

import (
	"context"
	"os"
	"strings"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	defaultAPIPath     = "api/"
	defaultPort        = 3000
	defaultUserHeader  = "X-User-Id"
	defaultTokenHeader = "X-Auth-Token"
)

// Hook is invoked after a successful built-in login or logout. A
// non-nil return value is attached to the response data under "extra".
type Hook func(ctx context.Context, rc *RequestContext) interface{}

// AuthOptions controls where header-based credentials are read from.
type AuthOptions struct {
	// UserHeader and TokenHeader name the request headers carrying the
	// caller's user id and session token.
	UserHeader  string `yaml:"userHeader"`
	TokenHeader string `yaml:"tokenHeader"`

	// Extract, when set, replaces the header lookup entirely. It
	// returns the raw (unhashed) token.
	Extract func(rc *RequestContext) (userID, token string) `yaml:"-"`
}

// Options configures an API instance. The zero value is usable; see
// the individual fields for defaults. Options are immutable once
// passed to New.
type Options struct {
	// APIPath is the base path prefix for every route. It is
	// normalized to carry no leading slash and a single trailing
	// slash. Defaults to "api/".
	APIPath string `yaml:"apiPath"`

	// Version, when set, is appended to the base path as its own
	// segment ("api/v1/").
	Version string `yaml:"version"`

	// UseDefaultAuth wires the built-in login and logout routes. It
	// requires the Users and Passwords collaborators.
	UseDefaultAuth bool `yaml:"useDefaultAuth"`

	// EnableCORS defaults to true. When enabled, CORS headers are
	// merged into the default headers and OPTIONS preflight requests
	// are answered without reaching auth or handlers.
	EnableCORS *bool `yaml:"enableCors"`

	// PrettyJSON indents response bodies.
	PrettyJSON bool `yaml:"prettyJson"`

	// DefaultHeaders are written on every response unless the handler
	// overrides them. Defaults to a JSON content type.
	DefaultHeaders map[string]string `yaml:"defaultHeaders"`

	Auth AuthOptions `yaml:"auth"`

	// Host and Port configure Run. Port defaults to 3000.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Collaborators. Only the ones a deployment actually uses need to
	// be set; see the interface docs for which features require which.
	Users     UserStore             `yaml:"-"`
	Roles     RoleProvider          `yaml:"-"`
	Passwords PasswordAuthenticator `yaml:"-"`
	OAuth     TokenValidator        `yaml:"-"`

	OnLoggedIn  Hook `yaml:"-"`
	OnLoggedOut Hook `yaml:"-"`

	// DefaultOptionsHandler, when set, replaces the built-in CORS
	// preflight responder.
	DefaultOptionsHandler HandlerFunc `yaml:"-"`
}

func (o *Options) corsEnabled() bool {
	return o.EnableCORS == nil || *o.EnableCORS
}

// validate fills defaults and ensures the options are internally
// consistent.
func (o *Options) validate() error {
	catcher := grip.NewBasicCatcher()

	if o.APIPath == "" {
		o.APIPath = defaultAPIPath
	}

	if o.DefaultHeaders == nil {
		o.DefaultHeaders = map[string]string{"Content-Type": "application/json"}
	}

	if o.Auth.UserHeader == "" {
		o.Auth.UserHeader = defaultUserHeader
	}
	if o.Auth.TokenHeader == "" {
		o.Auth.TokenHeader = defaultTokenHeader
	}

	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.Port < 0 || o.Port > 65535 {
		catcher.Errorf("%d is not a valid port number", o.Port)
	}

	if strings.ContainsAny(o.Version, "/") {
		catcher.Errorf("version '%s' must not contain a path separator", o.Version)
	}

	if o.UseDefaultAuth {
		if o.Users == nil {
			catcher.New("default auth requires a user store")
		}
		if o.Passwords == nil {
			catcher.New("default auth requires a password authenticator")
		}
	}

	return catcher.Resolve()
}

// LoadOptions reads the file-configurable subset of Options from a
// YAML file. Collaborators and hooks must still be set in code.
func LoadOptions(path string) (*Options, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading options file '%s'", path)
	}

	opts := &Options{}
	if err := yaml.Unmarshal(payload, opts); err != nil {
		return nil, errors.Wrapf(err, "parsing options file '%s'", path)
	}

	return opts, nil
}
