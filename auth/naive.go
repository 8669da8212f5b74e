package auth

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
	"github.com/pkg/errors"
)

// NaiveUserManager serves the users listed in the settings file. It is
// meant for development and small deployments where the user list is
// static; users authenticate with their API key only, so the token and
// login flows of gimlet.UserManager are unsupported.
type NaiveUserManager struct {
	users map[string]*User
}

// NewNaiveUserManager builds a manager from the configured users.
func NewNaiveUserManager(conf []restadmin.UserConfig) (*NaiveUserManager, error) {
	um := &NaiveUserManager{users: map[string]*User{}}
	for _, uc := range conf {
		if uc.ID == "" {
			return nil, errors.New("user must have an id")
		}
		if _, ok := um.users[uc.ID]; ok {
			return nil, errors.Errorf("user '%s' is defined more than once", uc.ID)
		}

		u := NewUser(uc.ID, uc.APIKey, uc.Superuser, uc.Permissions...)
		u.Name = uc.DisplayName
		u.EmailAddr = uc.Email
		um.users[uc.ID] = u
	}

	return um, nil
}

func (um *NaiveUserManager) GetUserByID(id string) (gimlet.User, error) {
	u, ok := um.users[id]
	if !ok {
		return nil, errors.Errorf("user '%s' not found", id)
	}
	return u, nil
}

// GetOrCreateUser only returns configured users; the user list cannot
// grow at runtime.
func (um *NaiveUserManager) GetOrCreateUser(u gimlet.User) (gimlet.User, error) {
	if u == nil {
		return nil, errors.New("no user given")
	}
	return um.GetUserByID(u.Username())
}

func (um *NaiveUserManager) ReauthorizeUser(u gimlet.User) error {
	if u == nil {
		return errors.New("no user given")
	}
	_, err := um.GetUserByID(u.Username())
	return err
}

func (um *NaiveUserManager) GetUserByToken(_ context.Context, _ string) (gimlet.User, error) {
	return nil, errors.New("token authentication is not supported")
}

func (um *NaiveUserManager) CreateUserToken(_, _ string) (string, error) {
	return "", errors.New("token authentication is not supported")
}

func (um *NaiveUserManager) GetLoginHandler(string) http.HandlerFunc   { return nil }
func (um *NaiveUserManager) GetLoginCallbackHandler() http.HandlerFunc { return nil }
func (um *NaiveUserManager) IsRedirect() bool                          { return false }

func (um *NaiveUserManager) ClearUser(gimlet.User, bool) error {
	return errors.New("clearing users is not supported")
}

func (um *NaiveUserManager) GetGroupsForUser(string) ([]string, error) {
	return nil, errors.New("groups are not supported")
}
