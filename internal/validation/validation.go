// Package validation wraps go-playground/validator with the service's
// custom tags.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"skillswap-auth/internal/policy"
)

const StrongPasswordTag = "strongpassword"

// ValidateStrongPassword applies the password complexity rule to a string field
func ValidateStrongPassword(fl validator.FieldLevel) bool {
	return policy.ValidateComplexity(fl.Field().String())
}

// New returns a validator that reports fields by their JSON names
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation(StrongPasswordTag, ValidateStrongPassword)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FailedTags returns the failing tag for each field of a validation error
func FailedTags(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// OnlyTag reports whether every failure in err is for tag
func OnlyTag(err error, tag string) bool {
	tags := FailedTags(err)
	if len(tags) == 0 {
		return false
	}
	for _, t := range tags {
		if t != tag {
			return false
		}
	}
	return true
}
