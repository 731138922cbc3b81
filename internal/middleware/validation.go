package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	appvalidator "github.com/jwalitptl/crm-api/pkg/validator"
)

// RegisterValidators installs JSON field naming and the custom rules on gin's
// binding validator so bind errors name fields the way clients send them.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return appvalidator.Register(v)
}
