package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var roles = map[string]struct{}{
	"admin": {},
	"user":  {},
}

// FieldError is a single validation failure keyed by JSON field name
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New returns a validator with the project's rules registered
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register installs JSON tag naming and the custom rules on v
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("stagecolor", validateColor); err != nil {
		return fmt.Errorf("failed to register stagecolor: %w", err)
	}
	if err := v.RegisterValidation("role", validateRole); err != nil {
		return fmt.Errorf("failed to register role: %w", err)
	}
	return nil
}

func validateColor(fl validator.FieldLevel) bool {
	return colorPattern.MatchString(fl.Field().String())
}

func validateRole(fl validator.FieldLevel) bool {
	_, ok := roles[fl.Field().String()]
	return ok
}

// Fields flattens validator errors into field messages. It returns nil for other errors.
func Fields(err error) []FieldError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "len":
		return "must have length " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "stagecolor":
		return "must be a hex color like #3b82f6"
	case "role":
		return "must be admin or user"
	case "eqfield":
		return "must match " + e.Param()
	default:
		return "failed " + e.Tag() + " validation"
	}
}

// Summary joins field errors into one message
func Summary(fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}
