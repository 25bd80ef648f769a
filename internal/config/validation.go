// Package config provides configuration management for the Oddsly decision engine.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Temian1/oddsly/internal/models"
)

// sportKeyPattern matches provider sport keys such as "basketball_nba".
var sportKeyPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("sports", validateSports)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration. Any failure is a
// models.ErrConfiguration: the process must fail fast before scheduling begins.
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateSports validates the configured sport keys
func validateSports(fl validator.FieldLevel) bool {
	sports, ok := fl.Field().Interface().([]string)
	if !ok || len(sports) == 0 {
		return false
	}

	for _, sport := range sports {
		if !sportKeyPattern.MatchString(sport) {
			return false
		}
	}

	return true
}

// validateCrossField applies validations that span multiple fields
func validateCrossField(cfg *Config) error {
	if cfg.UsesDatabase() {
		if cfg.Database.Name == "" || cfg.Database.User == "" {
			return fmt.Errorf("%w: database host is set but name/user are missing", models.ErrConfiguration)
		}
		if cfg.Database.Port == 0 {
			return fmt.Errorf("%w: database host is set but port is missing", models.ErrConfiguration)
		}
	}

	if cfg.Engine.MinBetAmount > 0 && cfg.Engine.MaxBetFraction <= 0 {
		return fmt.Errorf("%w: min_bet_amount requires a positive max_bet_fraction", models.ErrConfiguration)
	}

	// A refresh interval shorter than the fetch timeout guarantees overlap and
	// permanent single-flight rejection.
	if cfg.RefreshInterval() <= cfg.OddsAPITimeout() {
		return fmt.Errorf("%w: refresh interval must exceed the odds API timeout", models.ErrConfiguration)
	}

	return nil
}

// formatValidationErrors converts validator errors into a single configuration error
func formatValidationErrors(errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(msgs, "; "))
}
