// Package config loads and validates the flat parameter maps that configure navigation.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// EnvConfigPath names the environment variable holding the default config file path.
const EnvConfigPath = "LOADLIFTER_CONFIG"

// DefaultPath returns the config path from the environment, or fallback when unset.
func DefaultPath(fallback string) string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return fallback
}

// Read reads a json config file, expanding ${VAR} and ${VAR:-default} references from the
// environment first.
func Read(filePath string) (AttributeMap, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}

	attrs, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", filePath)
	}
	return attrs, nil
}

// FromReader decodes a json object into an AttributeMap.
func FromReader(r io.Reader) (AttributeMap, error) {
	dec := json.NewDecoder(r)
	var attrs AttributeMap
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, errors.New("config must be a json object")
	}
	return attrs, nil
}
