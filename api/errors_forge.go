package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/record"
)

// mapError converts intake sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	var vErr *endpoint.ValidationError

	switch {
	case errors.Is(err, intake.ErrEndpointNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrModelNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrExecutionNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, record.ErrNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrSlugTaken):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, record.ErrUniqueViolation):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &vErr):
		return forge.BadRequest(err.Error())
	case errors.Is(err, intake.ErrNoStore):
		return forge.InternalError(err)
	case errors.Is(err, intake.ErrStoreClosed):
		return forge.InternalError(err)
	case errors.Is(err, intake.ErrMigrationFailed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
