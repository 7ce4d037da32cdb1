package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while assembling or running
// an evaluation.
var (
	// ErrUnknownUnitType indicates that no factory is registered for a unit type.
	ErrUnknownUnitType = errors.New("unknown unit type")

	// ErrUnknownRule indicates that an election rule name is not registered.
	ErrUnknownRule = errors.New("unknown election rule")

	// ErrInvalidWinners indicates that a rule returned an unusable winner set.
	ErrInvalidWinners = errors.New("invalid winner set")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RuleError represents a failure inside an election rule.
type RuleError struct {
	// Rule is the name of the rule that failed.
	Rule string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for RuleError.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule error: rule=%s, err=%v", e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error { return e.Err }

// NewRuleError creates a new RuleError with the given details.
func NewRuleError(rule string, err error) *RuleError {
	return &RuleError{Rule: rule, Err: err}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
