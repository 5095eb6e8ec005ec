// Package environment provides utilities for managing environment variables
// and configuration loading with support for namespacing and defaults.
package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the given .env files, or from
// .env in the working directory when no path is given. Variables that are
// already set in the process environment are never overwritten.
//
// Example:
//
//	if err := environment.LoadEnv(); err != nil {
//	    log.Printf("no .env file loaded: %v", err)
//	}
func LoadEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// LoadFile decodes a TOML configuration file into cfg. A missing file is not
// an error so services can run from the environment alone. Values decoded here
// act as the base layer; ParseEnvTags only replaces them when the matching
// environment variable is set.
//
// Example:
//
//	var cfg Config
//	if err := environment.LoadFile("allmyducks.toml", &cfg); err != nil {
//	    return err
//	}
//	if err := environment.ParseEnvTags("ALLMYDUCKS", &cfg); err != nil {
//	    return err
//	}
func LoadFile(path string, cfg any) error {
	if path == "" {
		return nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}

	return nil
}

// GetEnvOrDefault retrieves an environment variable value, returning a fallback
// value if the variable is not set.
func GetEnvOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetNamespaceEnvKey constructs a namespaced environment variable key by
// combining a namespace prefix with the actual key name using an underscore.
// If no namespace is provided, it returns the key unchanged.
//
//	GetNamespaceEnvKey("ALLMYDUCKS", "PORT") // "ALLMYDUCKS_PORT"
func GetNamespaceEnvKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return fmt.Sprintf("%s_%s", namespace, key)
}

// GetNamespaceEnvOrDefault retrieves a namespaced environment variable value,
// returning a fallback value if the variable is not set.
func GetNamespaceEnvOrDefault(namespace, key, fallback string) string {
	return GetEnvOrDefault(GetNamespaceEnvKey(namespace, key), fallback)
}
