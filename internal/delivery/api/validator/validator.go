// Package validator adapts go-playground/validator to echo.
package validator

import (
	"regexp"
	"strings"

	domainerrors "clubinex/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// CustomValidator implements echo.Validator.
type CustomValidator struct {
	validate *validator.Validate
}

// New builds the request validator with the project's custom tags.
func New() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})

	return &CustomValidator{validate: v}
}

// Validate returns ErrValidationFailed naming every offending field.
func (cv *CustomValidator) Validate(i any) error {
	err := cv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domainerrors.ErrValidationFailed.WithDetails(err.Error())
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.Field()+": failed on '"+fe.Tag()+"'")
	}

	return domainerrors.ErrValidationFailed.WithDetails(strings.Join(parts, "; "))
}
