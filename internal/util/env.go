package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key or defaultValue when unset or empty
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		Warn("Invalid integer environment value, using default",
			String("key", key),
			Int("default", defaultValue),
		)
		return defaultValue
	}
	return parsed
}

func GetEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		Warn("Invalid boolean environment value, using default",
			String("key", key),
			Bool("default", defaultValue),
		)
		return defaultValue
	}
	return parsed
}

// GetEnvDuration accepts Go duration strings such as "15m" or "168h"
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		Warn("Invalid duration environment value, using default",
			String("key", key),
			Duration("default", defaultValue),
		)
		return defaultValue
	}
	return parsed
}

// GetEnvSlice splits a comma separated value, dropping empty entries
func GetEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
