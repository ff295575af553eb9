// Package config holds the small amount of environment-driven configuration
// shared by the roomline binaries (crs-server, crs-client, sns-server).
// Per-binary flags (port numbers, host, username) are parsed in
// each cmd/ package's main(); this package covers the cross-cutting pieces:
// optional .env loading and the default on-disk data directory.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
)

// LoadDotEnv loads the first .env file found among the given candidate
// paths, mirroring the teacher's "try several relative locations" pattern.
// It is not an error for none to exist; servers run fine from plain
// environment variables or flags alone.
func LoadDotEnv(candidates ...string) {
	if len(candidates) == 0 {
		candidates = []string{".env", "../.env", "../../.env"}
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment file", "path", path)
			return
		}
	}
	slog.Debug("no .env file found, relying on environment/flags")
}

// DefaultDataDir resolves the directory SNS persistence files live in when
// -data-dir is not passed: $SNS_DATA_DIR if set, else ~/.sns-data.
func DefaultDataDir() string {
	if dir := os.Getenv("SNS_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		return ".sns-data"
	}
	return filepath.Join(home, ".sns-data")
}

// ParsePort validates that a port string is a number in the range 1-65535.
// (CRS room listeners are allocated separately, from 1024-65534.)
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("config: %q is not a valid port number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("config: port %d out of range 1-65535", port)
	}
	return port, nil
}

// LogLevelFromEnv returns LOG_LEVEL (default "info"). The binaries choose
// development logging from their -dev flag only; none of them calls this.
func LogLevelFromEnv() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// ControlRateLimitFormatted returns the CRS control-connection rate limit,
// per remote IP, in github.com/ulule/limiter's formatted-rate syntax
// (CRS_CONTROL_RATE_LIMIT, default "30-M").
func ControlRateLimitFormatted() string {
	if v := os.Getenv("CRS_CONTROL_RATE_LIMIT"); v != "" {
		return v
	}
	return "30-M"
}

// LoginRateLimitFormatted returns the SNS Login rate limit, per username, in
// github.com/ulule/limiter's formatted-rate syntax (SNS_LOGIN_RATE_LIMIT,
// default "10-M").
func LoginRateLimitFormatted() string {
	if v := os.Getenv("SNS_LOGIN_RATE_LIMIT"); v != "" {
		return v
	}
	return "10-M"
}
