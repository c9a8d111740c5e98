package service

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// SignupInput carries the fields accepted at registration. Role is never
// accepted from callers; new accounts always start as plain users.
type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	PasswordConfirm string
}

// Validate checks the signup payload before any persistence happens. The
// confirmation value is compared here and discarded; it is never stored.
func (in SignupInput) Validate(orgDomain string) error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(3, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(3, 100)),
		validation.Field(&in.Email, validation.Required, is.Email, validation.By(emailInOrgDomain(orgDomain))),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&in.PasswordConfirm, validation.Required, validation.By(stringEquals(in.Password, "passwords are not the same"))),
	))
}

// NewPasswordInput is the password/confirmation pair set during reset and
// update flows.
type NewPasswordInput struct {
	Password        string
	PasswordConfirm string
}

func (in NewPasswordInput) Validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&in.PasswordConfirm, validation.Required, validation.By(stringEquals(in.Password, "passwords are not the same"))),
	))
}

// UpdateProfileInput carries self-service profile mutations. Empty fields
// are left untouched; the password never travels through this path.
type UpdateProfileInput struct {
	FirstName string
	LastName  string
	Photo     string
}

func (in UpdateProfileInput) Validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Length(3, 100)),
		validation.Field(&in.LastName, validation.Length(3, 100)),
		validation.Field(&in.Photo, validation.Length(1, 255)),
	))
}

func emailInOrgDomain(orgDomain string) validation.RuleFunc {
	return func(value interface{}) error {
		email, _ := value.(string)
		if email == "" {
			return nil
		}
		at := strings.LastIndex(email, "@")
		if at < 0 || !strings.EqualFold(email[at+1:], orgDomain) {
			return fmt.Errorf("please provide a valid %s email", orgDomain)
		}
		return nil
	}
}

func stringEquals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		got, _ := value.(string)
		if got != expected {
			return errors.New(message)
		}
		return nil
	}
}

// asValidationError converts ozzo field errors into the service error
// taxonomy, preserving the per-field messages as structured details.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("invalid input data", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
