// Package pipeline runs one fetch, filter, persist and DNS sync pass.
package pipeline

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/artifact"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/controller"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/ipaddr"
)

// Fetcher returns raw list entries.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Pipeline wires the stages of a run. Geo is owned by the caller, who
// opens it before Run and closes it afterwards.
type Pipeline struct {
	Log          logr.Logger
	Source       Fetcher
	Geo          geo.Resolver
	Country      string
	ArtifactPath string
	Reconciler   *controller.RecordSetReconciler
	DryRun       bool
}

// Report describes what a run did.
type Report struct {
	Fetched   int
	Sanitized int
	Matched   int
	Unique    int
	// Skipped is set when no address matched and nothing was written or synced.
	Skipped bool
	// Plan is the dry-run description of the DNS changes.
	Plan string
	Sync controller.Result
}

// Run executes the stages in order. It returns early, leaving the artifact
// and DNS untouched, when no address survives filtering.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	raw, err := p.Source.Fetch(ctx)
	if err != nil {
		return report, err
	}
	report.Fetched = len(raw)

	addrs := ipaddr.Sanitize(raw)
	report.Sanitized = len(addrs)
	p.Log.Info("sanitized source entries", "fetched", report.Fetched, "valid", report.Sanitized)

	matched, err := geo.Filter(p.Log.WithName("geo"), p.Geo, addrs, p.Country)
	if err != nil {
		return report, fmt.Errorf("filtering by country: %w", err)
	}
	report.Matched = len(matched)

	unique := ipaddr.Dedupe(matched)
	report.Unique = len(unique)
	p.Log.Info("filtered addresses", "country", p.Country, "matched", report.Matched, "unique", report.Unique)

	if len(unique) == 0 {
		p.Log.Info("no addresses found for country, keeping existing artifact and DNS records", "country", p.Country, "artifact", p.ArtifactPath)
		report.Skipped = true
		return report, nil
	}

	if p.DryRun {
		existing, err := p.Reconciler.DNS.List(ctx, p.Reconciler.Hostname)
		if err != nil {
			return report, fmt.Errorf("listing DNS records for %s: %w", p.Reconciler.Hostname, err)
		}
		planned := make([]string, 0, len(unique))
		for _, t := range unique {
			planned = append(planned, t.Addr)
		}
		report.Plan = p.Reconciler.FormatPlan(existing, planned)
		p.Log.Info("dry run, not writing artifact or changing DNS", "artifact", p.ArtifactPath)
		return report, nil
	}

	if err := artifact.Write(p.ArtifactPath, unique); err != nil {
		return report, err
	}
	p.Log.Info("wrote artifact", "path", p.ArtifactPath, "entries", len(unique))

	// DNS is synced from what was persisted.
	persisted, err := artifact.ReadAddresses(p.ArtifactPath)
	if err != nil {
		return report, err
	}

	report.Sync, err = p.Reconciler.Reconcile(ctx, persisted)
	if err != nil {
		return report, err
	}
	p.Log.Info("synchronized DNS records",
		"hostname", p.Reconciler.Hostname,
		"deleted", report.Sync.Deleted,
		"deleteFailed", report.Sync.DeleteFailed,
		"created", report.Sync.Created,
		"createFailed", report.Sync.CreateFailed)
	return report, nil
}
