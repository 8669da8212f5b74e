package auth

import (
	"sort"

	"github.com/evergreen-ci/gimlet"
)

// User is an API user whose permissions are a flat set of keys of the form
// "{app_label}.{action}_{model_name}". Superusers hold every permission.
type User struct {
	ID          string
	Name        string
	EmailAddr   string
	APIKey      string
	Superuser   bool
	permissions map[string]bool
}

// NewUser constructs a user holding the given permission keys.
func NewUser(id, apiKey string, superuser bool, permissions ...string) *User {
	u := &User{
		ID:          id,
		APIKey:      apiKey,
		Superuser:   superuser,
		permissions: map[string]bool{},
	}
	for _, p := range permissions {
		u.permissions[p] = true
	}
	return u
}

func (u *User) Username() string        { return u.ID }
func (u *User) Email() string           { return u.EmailAddr }
func (u *User) GetAPIKey() string       { return u.APIKey }
func (u *User) GetAccessToken() string  { return "" }
func (u *User) GetRefreshToken() string { return "" }

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Roles returns the permission keys the user holds, sorted.
func (u *User) Roles() []string {
	out := make([]string, 0, len(u.permissions))
	for p := range u.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPermission checks for the key "{Resource}.{Permission}".
func (u *User) HasPermission(opts gimlet.PermissionOpts) bool {
	if u == nil {
		return false
	}
	if u.Superuser {
		return true
	}
	return u.permissions[opts.Resource+"."+opts.Permission]
}

// Grant adds permission keys to the user.
func (u *User) Grant(permissions ...string) {
	if u.permissions == nil {
		u.permissions = map[string]bool{}
	}
	for _, p := range permissions {
		u.permissions[p] = true
	}
}
