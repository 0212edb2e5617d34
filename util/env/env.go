// Package env reads configuration from environment variables.
package env

import "os"

func GetOrDefault(name string, defaultValue string) string {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return defaultValue
	}
	return value
}
