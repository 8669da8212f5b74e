package route

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin/db"
	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// ConfigurationError reports a registration that cannot work, such as an
// abstract model or an option of the wrong type.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// AlreadyRegisteredError is returned when registering a model twice.
type AlreadyRegisteredError struct {
	Model string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("the model %s is already registered", e.Model)
}

// NotRegisteredError is returned when unregistering a model that was never
// registered.
type NotRegisteredError struct {
	Model string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("the model %s is not registered", e.Model)
}

// ForbiddenError is returned when the user lacks the permission an action
// requires.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("you do not have permission to perform this action (requires '%s')", e.Permission)
}

func configurationErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{Message: fmt.Sprintf(format, args...)})
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsAlreadyRegistered(err error) bool {
	var target *AlreadyRegisteredError
	return errors.As(err, &target)
}

func IsNotRegistered(err error) bool {
	var target *NotRegisteredError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

// errorResponder translates errors from view set actions into responses.
// Only unexpected failures are logged.
func errorResponder(ctx context.Context, err error) gimlet.Responder {
	var verr dbModel.ValidationError
	switch {
	case IsForbidden(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusForbidden,
			Message:    errors.Cause(err).Error(),
		})
	case db.IsNotFound(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    err.Error(),
		})
	case errors.As(err, &verr):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    verr.Error(),
		})
	case db.IsDuplicateKey(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusConflict,
			Message:    err.Error(),
		})
	default:
		grip.Error(message.WrapError(err, message.Fields{
			"message": "view set action failed",
			"request": gimlet.GetRequestID(ctx),
		}))
		return gimlet.MakeJSONInternalErrorResponder(err)
	}
}
