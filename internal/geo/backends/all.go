// Package backends imports all geolocation backends to trigger their init() registration.
package backends

import (
	_ "github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo/ip2location"
	_ "github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo/maxmind"
)
