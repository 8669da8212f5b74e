package auth

import (
	"context"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
)

// MiddlewareConfiguration authenticates requests by the API user and key
// headers alone.
func MiddlewareConfiguration() gimlet.UserMiddlewareConfiguration {
	return gimlet.UserMiddlewareConfiguration{
		SkipCookie:     true,
		HeaderUserName: restadmin.APIUserHeader,
		HeaderKeyName:  restadmin.APIKeyHeader,
	}
}

// UserMiddleware attaches the user named by the API headers to the
// request. Requests without credentials or naming an unknown user stay
// anonymous and are rejected by the permission checks; a known user with
// the wrong key gets a 401.
func UserMiddleware(um gimlet.UserManager) gimlet.Middleware {
	return gimlet.UserMiddleware(context.Background(), um, MiddlewareConfiguration())
}
