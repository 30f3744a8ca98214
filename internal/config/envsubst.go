package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} or ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands environment variable references in data.
//   - ${VAR} is replaced with the value of VAR, or empty if unset
//   - ${VAR:-default} is replaced with VAR's value, or default if VAR is unset or empty
func ExpandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		sub := envVarPattern.FindSubmatch(match)
		if val := os.Getenv(string(sub[1])); val != "" {
			return []byte(val)
		}
		return sub[2]
	})
}
