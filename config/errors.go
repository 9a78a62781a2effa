package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError reports a missing or malformed configuration key.
//
//nolint:revive
type ConfigError struct {
	Path string
	Key  string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("error validating %q: config key %q: %v", e.Path, e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrFieldRequired is wrapped by errors for absent required keys.
var ErrFieldRequired = errors.New("is required")

// NewFieldRequiredError returns an error for a required key that is absent.
func NewFieldRequiredError(path, key string) error {
	return &ConfigError{Path: path, Key: key, Err: ErrFieldRequired}
}

// NewFieldInvalidError returns an error for a key whose value cannot be used.
func NewFieldInvalidError(path, key string, err error) error {
	return &ConfigError{Path: path, Key: key, Err: err}
}

// AsConfigError unwraps err into a *ConfigError if it is one.
func AsConfigError(err error) (*ConfigError, bool) {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}
