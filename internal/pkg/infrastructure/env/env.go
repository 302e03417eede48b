// Package env reads process configuration from the environment, the way
// cmd/optimade-gateway expects to be wired: a
// required variable that is missing kills the process at startup rather
// than surfacing as a nil-pointer later, an optional one silently falls
// back to its default.
package env

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// GetVariableOrDie returns the value of the named environment variable,
// or logs a fatal error and exits the process if it is unset or empty.
// description is used only to make the fatal log line readable.
func GetVariableOrDie(log zerolog.Logger, key, description string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("%s environment variable (%s) is not set", key, description)
	}
	return value
}

// GetVariableOrDefault returns the value of the named environment
// variable, or fallback if it is unset or empty.
func GetVariableOrDefault(log zerolog.Logger, key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetVariableOrDefaultInt is GetVariableOrDefault for integer-valued
// configuration, e.g. timeouts and concurrency limits. A value that
// fails to parse is logged and the fallback is used instead.
func GetVariableOrDefaultInt(log zerolog.Logger, key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Err(err).Msgf("%s is not a valid integer, using default %d", key, fallback)
		return fallback
	}
	return parsed
}
