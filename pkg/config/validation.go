package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Daemon.Port == 0 {
		return fmt.Errorf("daemon.port: must be set")
	}

	if cfg.Storage.Type == "filesystem" {
		if path, _ := cfg.Storage.Filesystem["path"].(string); path == "" {
			return fmt.Errorf("storage.filesystem.path: required when storage.type is filesystem")
		}
	}
	if cfg.Storage.Type == "s3" {
		if bucket, _ := cfg.Storage.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("storage.s3.bucket: required when storage.type is s3")
		}
	}

	if cfg.Journal.Type == "badger" {
		if path, _ := cfg.Journal.Badger["path"].(string); path == "" {
			return fmt.Errorf("journal.badger.path: required when journal.type is badger")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Daemon.Port {
		return fmt.Errorf("metrics.port: %d is already used by daemon.port", cfg.Metrics.Port)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
