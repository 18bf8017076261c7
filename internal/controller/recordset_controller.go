package controller

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns"
)

// Record defaults applied when the reconciler fields are left empty.
const (
	DefaultRecordType = "A"
	DefaultTTL        = 60
)

// RecordSetReconciler replaces every record of one hostname with one record
// per address.
type RecordSetReconciler struct {
	Log      logr.Logger
	DNS      dns.Provider
	Hostname string
	Type     string // defaults to DefaultRecordType
	TTL      int    // defaults to DefaultTTL
	Proxied  bool
	Comment  string // written to providers that support record comments
}

// Result summarises one reconcile pass.
type Result struct {
	Deleted      int
	DeleteFailed int
	Created      int
	CreateFailed int
	// Errors aggregates the per-record failures that did not stop the pass.
	Errors error
}

// Reconcile deletes all existing records named r.Hostname, whatever their
// type, and then creates one record per address. Individual delete and
// create failures are logged and collected in Result.Errors; only a failure
// to list the existing records stops the pass.
func (r *RecordSetReconciler) Reconcile(ctx context.Context, addrs []string) (Result, error) {
	var res Result
	var errs []error

	existing, err := r.DNS.List(ctx, r.Hostname)
	if err != nil {
		return res, fmt.Errorf("listing DNS records for %s: %w", r.Hostname, err)
	}
	r.Log.Info("deleting existing DNS records", "hostname", r.Hostname, "count", len(existing))

	for _, rec := range existing {
		if err := r.DNS.Delete(ctx, rec); err != nil {
			res.DeleteFailed++
			errs = append(errs, fmt.Errorf("deleting %s record %s (%s): %w", rec.Type, rec.ID, rec.Value, err))
			r.Log.Error(err, "failed to delete DNS record", "hostname", r.Hostname, "id", rec.ID, "type", rec.Type, "value", rec.Value)
			continue
		}
		res.Deleted++
		r.Log.V(1).Info("deleted DNS record", "hostname", r.Hostname, "id", rec.ID, "type", rec.Type, "value", rec.Value)
	}

	for _, addr := range addrs {
		record := r.recordFor(addr)
		if err := r.DNS.Create(ctx, record); err != nil {
			res.CreateFailed++
			errs = append(errs, fmt.Errorf("creating %s record %s: %w", record.Type, addr, err))
			r.Log.Error(err, "failed to create DNS record", "hostname", r.Hostname, "ip", addr)
			continue
		}
		res.Created++
		r.Log.Info("created DNS record", "hostname", r.Hostname, "type", record.Type, "ip", addr)
	}

	res.Errors = utilerrors.NewAggregate(errs)
	return res, nil
}

func (r *RecordSetReconciler) recordFor(addr string) dns.Record {
	recordType := r.Type
	if recordType == "" {
		recordType = DefaultRecordType
	}
	ttl := r.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	record := dns.Record{
		Hostname: r.Hostname,
		Type:     recordType,
		Value:    addr,
		TTL:      ttl,
		Proxied:  r.Proxied,
	}
	if r.Comment != "" {
		record.Meta = map[string]string{"comment": r.Comment}
	}
	return record
}
