package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable this service reads.
const Prefix = "LIVELIHOOD_"

// Get reads key with Prefix first and the bare key second, so values can
// be read before the full config loads. Blank values count as unset.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
