package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-metricvote/internal/measure"
)

// registerCustomValidators registers domain-specific validation functions
// with the validator instance for use in configuration struct tags.
// registerCustomValidators returns an error if any validator registration fails.
func registerCustomValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"semver":   validateSemver,
		"distance": validateDistance,
		"zerocost": validateZeroCostPolicy,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(value, "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateDistance accepts the names of built-in distance metrics.
func validateDistance(fl validator.FieldLevel) bool {
	_, err := measure.Metric(fl.Field().String()).Func()
	return err == nil
}

// validateZeroCostPolicy accepts the known zero-cost policies.
func validateZeroCostPolicy(fl validator.FieldLevel) bool {
	switch measure.ZeroCostPolicy(fl.Field().String()) {
	case measure.ZeroCostUnit, measure.ZeroCostStrict:
		return true
	default:
		return false
	}
}
