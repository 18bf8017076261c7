// Package ipaddr cleans raw IP list entries and handles country-tagged
// addresses of the form "address#CC".
package ipaddr

import (
	"fmt"
	"net/netip"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Delimiter separates an address from its annotation, both in source lists
// ("1.2.3.4#120ms") and in tagged addresses ("1.2.3.4#SG").
const Delimiter = "#"

// Tagged is an address annotated with the country it resolved to.
type Tagged struct {
	Addr    string
	Country string
}

func (t Tagged) String() string {
	return t.Addr + Delimiter + t.Country
}

// ParseTagged parses an "address#CC" line. A line without a tag yields a
// Tagged with an empty Country.
func ParseTagged(line string) (Tagged, error) {
	addr, country, _ := strings.Cut(strings.TrimSpace(line), Delimiter)
	addr = strings.TrimSpace(addr)
	if !Valid(addr) {
		return Tagged{}, fmt.Errorf("invalid tagged address %q", line)
	}
	return Tagged{Addr: addr, Country: strings.TrimSpace(country)}, nil
}

// StripAnnotation returns the part of a raw entry before the first
// delimiter, trimmed of surrounding whitespace.
func StripAnnotation(line string) string {
	addr, _, _ := strings.Cut(line, Delimiter)
	return strings.TrimSpace(addr)
}

// Valid reports whether s is a dotted-quad IPv4 address or an IPv6 address
// without a zone.
func Valid(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Zone() == ""
}

// Sanitize strips annotations from each raw entry and keeps the valid
// addresses in their original order. Invalid entries are dropped.
func Sanitize(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		addr := StripAnnotation(line)
		if Valid(addr) {
			out = append(out, addr)
		}
	}
	return out
}

// Dedupe keeps the first entry seen for every address, ignoring tags, and
// preserves the order of first occurrence.
func Dedupe(in []Tagged) []Tagged {
	seen := sets.New[string]()
	out := make([]Tagged, 0, len(in))
	for _, t := range in {
		if seen.Has(t.Addr) {
			continue
		}
		seen.Insert(t.Addr)
		out = append(out, t)
	}
	return out
}
