package courses

import (
	"strconv"
	"strings"
)

// URLIdentifier normalizes the :idOrSlug path segment: numeric identifiers
// pass through as ids, everything else is treated as a slug. Returns the
// cleaned identifier and whether it is numeric.
func URLIdentifier(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if _, err := strconv.Atoi(s); err == nil {
		return s, true
	}
	return s, false
}
