package dns

import "context"

// Record represents a DNS record held by a provider.
type Record struct {
	ID       string            // provider-assigned id, empty for records not yet created
	Hostname string            // FQDN, e.g. "app.example.com"
	Type     string            // "A", "AAAA", "CNAME"
	Value    string            // IP address or target
	TTL      int               // seconds, 1 = provider "automatic"
	Proxied  bool              // only meaningful for providers with a proxy layer
	Meta     map[string]string // provider-specific fields (e.g. "comment")
}

// Provider is the interface that DNS providers must implement.
type Provider interface {
	// List returns every record in the zone whose name is exactly hostname,
	// whatever its type.
	List(ctx context.Context, hostname string) ([]Record, error)
	Create(ctx context.Context, record Record) error
	Delete(ctx context.Context, record Record) error
}
