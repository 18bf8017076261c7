package dns

import (
	"strings"
)

// NormalizeName strips the trailing root dot from an FQDN.
// e.g. "app.example.com." → "app.example.com"
func NormalizeName(fqdn string) string {
	return strings.TrimSuffix(fqdn, ".")
}

// MatchName reports whether a provider record name is exactly hostname,
// ignoring only a trailing root dot on either side.
func MatchName(recordName, hostname string) bool {
	return NormalizeName(recordName) == NormalizeName(hostname)
}
