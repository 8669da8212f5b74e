package auth

import (
	"fmt"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin/model"
)

// ResourceTypeModel is the gimlet resource type of model permissions.
const ResourceTypeModel = "model"

// Actions a permission can grant on a model.
const (
	ActionView   = "view"
	ActionAdd    = "add"
	ActionChange = "change"
	ActionDelete = "delete"
)

// PermissionCodename returns the codename of an action on a model, e.g.
// "view_book".
func PermissionCodename(action string, m *model.Model) string {
	return fmt.Sprintf("%s_%s", action, m.Name)
}

// PermissionKey returns the full permission key of an action on a model,
// e.g. "library.view_book".
func PermissionKey(m *model.Model, action string) string {
	return fmt.Sprintf("%s.%s", m.AppLabel, PermissionCodename(action, m))
}

// PermissionOpts describes the permission for an action on a model in the
// form gimlet users are asked about.
func PermissionOpts(m *model.Model, action string) gimlet.PermissionOpts {
	return gimlet.PermissionOpts{
		Resource:     m.AppLabel,
		ResourceType: ResourceTypeModel,
		Permission:   PermissionCodename(action, m),
	}
}

func hasPermission(u gimlet.User, m *model.Model, action string) bool {
	if u == nil || m == nil {
		return false
	}
	return u.HasPermission(PermissionOpts(m, action))
}

// HasViewPermission reports whether the user may read records of the
// model. Holding the change permission implies view.
func HasViewPermission(u gimlet.User, m *model.Model) bool {
	return hasPermission(u, m, ActionView) || hasPermission(u, m, ActionChange)
}

func HasAddPermission(u gimlet.User, m *model.Model) bool {
	return hasPermission(u, m, ActionAdd)
}

func HasChangePermission(u gimlet.User, m *model.Model) bool {
	return hasPermission(u, m, ActionChange)
}

func HasDeletePermission(u gimlet.User, m *model.Model) bool {
	return hasPermission(u, m, ActionDelete)
}
