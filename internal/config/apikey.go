package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// API key environment variables, in lookup order
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvAPIKeyFallback = "API_KEY"
)

// ErrNoAPIKey is returned when no key is found in any source
var ErrNoAPIKey = errors.New("no API key found: set GEMINI_API_KEY or run 'techtouch login'")

// KeySource describes where an API key was found
type KeySource string

const (
	SourceEnv         KeySource = "env"
	SourceDotEnv      KeySource = ".env"
	SourceCredentials KeySource = "credentials"
)

type credentials struct {
	APIKey string `json:"api_key"`
}

// GetCredentialsPath returns the path to the stored API key
func GetCredentialsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credentials.json"), nil
}

// LoadAPIKey resolves the API key from the environment, a .env file in the
// working directory, then the stored credentials file
func LoadAPIKey() (string, KeySource, error) {
	for _, name := range []string{EnvAPIKey, EnvAPIKeyFallback} {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key, SourceEnv, nil
		}
	}

	if env, err := godotenv.Read(); err == nil {
		for _, name := range []string{EnvAPIKey, EnvAPIKeyFallback} {
			if key := strings.TrimSpace(env[name]); key != "" {
				return key, SourceDotEnv, nil
			}
		}
	}

	path, err := GetCredentialsPath()
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", ErrNoAPIKey
		}
		return "", "", fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials: %w", err)
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return "", "", ErrNoAPIKey
	}
	return strings.TrimSpace(creds.APIKey), SourceCredentials, nil
}

// SaveAPIKey stores the key in the credentials file with owner-only permissions
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(credentials{APIKey: key}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "credentials.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the stored credentials. A missing file is not an error.
func DeleteAPIKey() error {
	path, err := GetCredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// MaskKey hides all but the last four characters of a key
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
