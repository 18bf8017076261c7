package controller

import (
	"fmt"
	"strings"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns"
)

// FormatPlan returns a human-readable description of what Reconcile would
// do for hostname given the existing records and the new addresses.
func (r *RecordSetReconciler) FormatPlan(existing []dns.Record, addrs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Record set %s\n", r.Hostname)

	fmt.Fprintf(&b, "  Delete (%d):\n", len(existing))
	for _, rec := range existing {
		proxied := ""
		if rec.Proxied {
			proxied = " proxied"
		}
		fmt.Fprintf(&b, "    - %s %s ttl=%d id=%s%s\n", rec.Type, rec.Value, rec.TTL, rec.ID, proxied)
	}

	fmt.Fprintf(&b, "  Create (%d):\n", len(addrs))
	for _, addr := range addrs {
		rec := r.recordFor(addr)
		fmt.Fprintf(&b, "    + %s %s ttl=%d proxied=%t\n", rec.Type, rec.Value, rec.TTL, rec.Proxied)
	}

	return b.String()
}
