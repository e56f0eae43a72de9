package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by the binaries.
const (
	EnvConfig    = "BACTHTS_CONFIG"
	EnvOutputDir = "BACTHTS_OUTPUT_DIR"
	EnvLogLevel  = "BACTHTS_LOG_LEVEL"
	EnvResultsDB = "BACTHTS_RESULTS_DB"
	EnvStrain    = "BACTHTS_STRAIN"
)

// LoadDotEnv loads variables from a .env file when one exists. Variables
// already present in the environment are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides output settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Output.LogLevel = v
	}
	if v := os.Getenv(EnvResultsDB); v != "" {
		c.Output.ResultsDB = v
	}
}

// Getenv returns the value of key, or def when unset
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
