// Package ip2location resolves countries from IP2Location (LITE) BIN databases.
//
// This site or product includes IP2Location LITE data available from
// <a href="https://lite.ip2location.com">https://lite.ip2location.com</a>.
package ip2location

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/ip2location/ip2location-go/v9"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo"
)

// notFoundCode is what IP2Location returns for ranges it has no country for.
const notFoundCode = "-"

func init() {
	geo.Register("ip2location", func(path string) (geo.Resolver, error) {
		return Open(path)
	})
}

// Resolver reads country codes from a BIN file.
type Resolver struct {
	db *ip2location.DB
}

// Open opens the BIN database at path.
func Open(path string) (*Resolver, error) {
	db, err := ip2location.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", geo.ErrUnavailable, path, err)
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO code of the country the address is located in.
func (r *Resolver) Country(addr netip.Addr) (string, error) {
	results, err := r.db.Get_country_short(addr.Unmap().String())
	if err != nil {
		// IPv6 lookups against an IPv4-only file fail per address.
		if addr.Unmap().Is6() && strings.Contains(strings.ToLower(err.Error()), "ipv6") {
			return "", fmt.Errorf("%w: %v", geo.ErrNotFound, err)
		}
		return "", fmt.Errorf("%w: %v", geo.ErrUnavailable, err)
	}
	return classify(results.Country_short)
}

// classify turns the raw country_short field into a code or a typed error.
// Files without the country column answer with an explanatory sentence.
func classify(code string) (string, error) {
	code = strings.TrimSpace(code)
	switch {
	case code == "" || code == notFoundCode:
		return "", geo.ErrNotFound
	case len(code) != 2:
		return "", fmt.Errorf("%w: %s", geo.ErrUnavailable, code)
	}
	return strings.ToUpper(code), nil
}

// Close releases the file handle.
func (r *Resolver) Close() error {
	r.db.Close()
	return nil
}
