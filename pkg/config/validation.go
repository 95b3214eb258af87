package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct validation walks
// nested configs, so component-level tags (store, auth, api, mqtt) are
// enforced from here too.
var validate = validator.New()

// Validate checks the configuration against its validation tags.
//
// Returns a descriptive error naming the offending field and rule when
// validation fails.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				return fmt.Errorf("invalid configuration: field %q failed rule %q (value: %v)",
					fe.Namespace(), fe.Tag(), fe.Value())
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
