// Package handler contains the HTTP handlers for the application.
package handler

import (
	"net/http"

	"clubinex/internal/delivery/api/response"
	deliverycontext "clubinex/internal/delivery/context"
	domainerrors "clubinex/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const defaultPageLimit = 20

// HealthCheck reports that the process is serving.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

// bind decodes the body into req and runs the struct validator.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	return errors.WithStack(c.Validate(req))
}

func currentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := deliverycontext.GetUserID(c)
	if !ok {
		return uuid.Nil, domainerrors.ErrUnauthorized
	}

	return userID, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domainerrors.ErrValidationFailed.WithDetails("id must be a UUID")
	}

	return id, nil
}

func pageParams(c echo.Context) (limit, offset int, err error) {
	limit = defaultPageLimit
	err = echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return 0, 0, domainerrors.ErrValidationFailed.WithDetails("limit and offset must be integers")
	}
	if limit <= 0 || offset < 0 {
		return 0, 0, domainerrors.ErrValidationFailed.WithDetails("limit must be positive and offset not negative")
	}

	return limit, offset, nil
}
