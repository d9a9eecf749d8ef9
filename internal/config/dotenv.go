package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files in order.
// Missing files are skipped. Variables already present in the environment
// are never overwritten, so the first source to set a variable wins.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads an optional .env file and then the environment.
// An empty envPath means ".env" in the working directory.
func LoadConfig(envPath string) (AppConfig, error) {
	if envPath == "" {
		envPath = ".env"
	}
	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	return envCfg.ToAppConfig(), nil
}
