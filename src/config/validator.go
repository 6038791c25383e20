package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/traeagent/tools"
)

// Providers lists the provider names the client can build.
var Providers = []string{
	aisdk.ProviderOpenAI,
	aisdk.ProviderAnthropic,
	aisdk.ProviderOpenRouter,
	aisdk.ProviderOpenAICompatible,
}

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	// Register custom validation functions
	v.RegisterValidation("provider_name", validateProviderName)
	v.RegisterValidation("tool_name", validateToolName)

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration. The first failing field is
// reported as a ValidationError.
func (v *Validator) Validate(config *Config) error {
	if err := v.validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return ValidationError{
				Field:   e.Namespace(),
				Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
		return err
	}
	return nil
}

func validateProviderName(fl validator.FieldLevel) bool {
	return slices.Contains(Providers, fl.Field().String())
}

func validateToolName(fl validator.FieldLevel) bool {
	return tools.IsKnown(fl.Field().String())
}
