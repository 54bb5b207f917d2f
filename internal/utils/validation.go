package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// ValidateStruct runs go-playground/validator tag validation over a request struct.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", err.Error(), err)
	}
	return nil
}
