package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the release version, or "dev" for an unstamped build
func Get() string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return "dev"
}
