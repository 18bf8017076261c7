// Package maxmind resolves countries from MaxMind GeoLite2/GeoIP2 Country
// (or City) databases.
package maxmind

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo"
)

func init() {
	geo.Register("maxmind", func(path string) (geo.Resolver, error) {
		return Open(path)
	})
}

// Resolver reads country codes from an .mmdb file.
type Resolver struct {
	db *geoip2.Reader
}

// Open memory-maps the database at path.
func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", geo.ErrUnavailable, path, err)
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO code of the country the address is located in.
// IPv6 addresses are not found in IPv4-only databases.
func (r *Resolver) Country(addr netip.Addr) (string, error) {
	addr = addr.Unmap()
	if addr.Is6() && r.db.Metadata().IPVersion == 4 {
		return "", fmt.Errorf("%w: %s in IPv4-only database", geo.ErrNotFound, addr)
	}
	record, err := r.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", geo.ErrUnavailable, err)
	}
	if record.Country.IsoCode == "" {
		return "", geo.ErrNotFound
	}
	return strings.ToUpper(record.Country.IsoCode), nil
}

// Close unmaps the database.
func (r *Resolver) Close() error {
	return r.db.Close()
}
