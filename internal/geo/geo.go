// Package geo resolves addresses to ISO country codes using an offline
// database and filters address lists down to a single country.
package geo

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/ipaddr"
)

var (
	// ErrNotFound means the database has no country for the address
	// (unallocated, reserved or private ranges). The address is skipped.
	ErrNotFound = errors.New("address not found in geolocation database")

	// ErrUnavailable means the database itself cannot answer: missing file,
	// corrupt data or the wrong database type. The run must stop.
	ErrUnavailable = errors.New("geolocation database unavailable")
)

// Resolver looks up the country of an address.
type Resolver interface {
	// Country returns the upper-case ISO 3166-1 alpha-2 code for addr.
	Country(addr netip.Addr) (string, error)
	Close() error
}

// Filter resolves every address and returns the ones located in country,
// tagged with that country code. Addresses the database does not know are
// logged and skipped; any other lookup failure aborts the filter.
func Filter(log logr.Logger, r Resolver, addrs []string, country string) ([]ipaddr.Tagged, error) {
	country = strings.ToUpper(country)

	var out []ipaddr.Tagged
	for _, s := range addrs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			log.Error(err, "skipping unparsable address", "ip", s)
			continue
		}

		code, err := r.Country(addr)
		if errors.Is(err, ErrNotFound) {
			log.Info("no country for address, skipping", "ip", s, "reason", err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", s, err)
		}

		if strings.EqualFold(code, country) {
			log.V(1).Info("address matches country", "ip", s, "country", country)
			out = append(out, ipaddr.Tagged{Addr: s, Country: country})
		}
	}
	return out, nil
}
