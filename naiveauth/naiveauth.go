// Package naiveauth provides an in-memory user manager implementing
// the restive identity collaborators: UserStore, RoleProvider, and
// PasswordAuthenticator. It keeps credentials in process memory and is
// recommended for dev and test purposes only; deployments needing real
// security should supply their own backends.
package naiveauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/restive-dev/restive"
	"golang.org/x/crypto/bcrypt"
)

// User describes an account passed to NewUserManager or AddUser.
// Password is the plain password; it is hashed at registration and not
// retained.
type User struct {
	ID                string
	Username          string
	Email             string
	Password          string
	Roles             []string
	AuthorizedClients []string
	Profile           restive.Record
}

type userEntry struct {
	User

	passwordHash   []byte
	passwordDigest string
	tokens         map[string]bool
}

// UserManager is an in-memory account and token registry. When a
// collection is bound, created accounts are mirrored into it so the
// user resource's reads observe them.
type UserManager struct {
	mu      sync.RWMutex
	users   map[string]*userEntry
	byName  map[string]string
	byEmail map[string]string
	coll    restive.Collection
}

// NewUserManager builds a manager pre-populated with the given users.
func NewUserManager(users ...User) (*UserManager, error) {
	m := &UserManager{
		users:   map[string]*userEntry{},
		byName:  map[string]string{},
		byEmail: map[string]string{},
	}

	for _, u := range users {
		if _, err := m.AddUser(u); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// BindCollection mirrors account creation into the given collection.
func (m *UserManager) BindCollection(coll restive.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.coll = coll
}

// AddUser registers an account and returns its id, generating one when
// unset.
func (m *UserManager) AddUser(u User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.addUser(u)
}

func (m *UserManager) addUser(u User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, exists := m.users[u.ID]; exists {
		return "", errors.Errorf("user '%s' already exists", u.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}

	digest := sha256.Sum256([]byte(u.Password))
	entry := &userEntry{
		User:           u,
		passwordHash:   hash,
		passwordDigest: hex.EncodeToString(digest[:]),
		tokens:         map[string]bool{},
	}
	entry.Password = ""

	m.users[u.ID] = entry
	if u.Username != "" {
		m.byName[u.Username] = u.ID
	}
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}

	return u.ID, nil
}

func (m *UserManager) principal(entry *userEntry) *restive.Principal {
	return &restive.Principal{
		ID:                entry.ID,
		Roles:             entry.Roles,
		AuthorizedClients: entry.AuthorizedClients,
		Extra:             entry.Profile,
	}
}

// FindByToken implements restive.UserStore.
func (m *UserManager) FindByToken(_ context.Context, userID, hashedToken string) (*restive.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry := m.users[userID]
	if entry == nil || !entry.tokens[hashedToken] {
		return nil, nil
	}

	return m.principal(entry), nil
}

// FindByID implements restive.UserStore.
func (m *UserManager) FindByID(_ context.Context, userID string) (*restive.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry := m.users[userID]
	if entry == nil {
		return nil, nil
	}

	return m.principal(entry), nil
}

// CreateAccount implements restive.UserStore. Recognized fields are
// username, email, password, and profile; the account is mirrored into
// the bound collection when one is set.
func (m *UserManager) CreateAccount(ctx context.Context, fields restive.Record) (string, error) {
	u := User{
		Username: stringField(fields, "username"),
		Email:    stringField(fields, "email"),
		Password: stringField(fields, "password"),
	}
	if profile, ok := fields["profile"].(map[string]interface{}); ok {
		u.Profile = restive.Record(profile)
	}
	if u.Username == "" && u.Email == "" {
		return "", errors.New("account needs a username or email")
	}

	m.mu.Lock()
	id, err := m.addUser(u)
	coll := m.coll
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	if coll != nil {
		doc := restive.Record{"_id": id, "username": u.Username, "email": u.Email}
		if u.Profile != nil {
			doc["profile"] = map[string]interface{}(u.Profile)
		}
		if _, err := coll.Insert(ctx, doc); err != nil {
			return "", errors.Wrap(err, "mirroring account into collection")
		}
	}

	return id, nil
}

// RemoveToken implements restive.UserStore.
func (m *UserManager) RemoveToken(_ context.Context, userID, hashedToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.users[userID]
	if entry == nil {
		return errors.Errorf("no user '%s'", userID)
	}
	delete(entry.tokens, hashedToken)

	return nil
}

// HasRole implements restive.RoleProvider against the stored account
// roles, so role changes apply without re-login.
func (m *UserManager) HasRole(_ context.Context, p *restive.Principal, roles []string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	held := p.Roles
	if entry := m.users[p.ID]; entry != nil {
		held = entry.Roles
	}

	for _, want := range roles {
		for _, role := range held {
			if role == want {
				return true, nil
			}
		}
	}

	return false, nil
}

// Authenticate implements restive.PasswordAuthenticator. It verifies
// the plain password against the bcrypt hash, or a pre-hashed digest
// against the stored sha-256 digest, and issues a fresh token on
// success.
func (m *UserManager) Authenticate(_ context.Context, q restive.UserQuery, p restive.Password) (*restive.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	switch {
	case q.Username != "":
		id = m.byName[q.Username]
	case q.Email != "":
		id = m.byEmail[q.Email]
	}

	entry := m.users[id]
	if entry == nil {
		return nil, &restive.APIError{StatusCode: http.StatusForbidden, Message: "User not found"}
	}

	if p.Digest != "" {
		digest := strings.ToLower(p.Digest)
		if subtle.ConstantTimeCompare([]byte(digest), []byte(entry.passwordDigest)) != 1 {
			return nil, &restive.APIError{StatusCode: http.StatusForbidden, Message: "Incorrect password"}
		}
	} else if bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(p.Plain)) != nil {
		return nil, &restive.APIError{StatusCode: http.StatusForbidden, Message: "Incorrect password"}
	}

	token := uuid.NewString()
	entry.tokens[restive.HashToken(token)] = true

	return &restive.LoginResult{UserID: entry.ID, AuthToken: token}, nil
}

// GrantToken registers a pre-issued token for a user, for callers that
// establish sessions outside the login flow.
func (m *UserManager) GrantToken(userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.users[userID]
	if entry == nil {
		return errors.Errorf("no user '%s'", userID)
	}
	entry.tokens[restive.HashToken(token)] = true

	return nil
}

func stringField(fields restive.Record, key string) string {
	val, _ := fields[key].(string)
	return val
}
