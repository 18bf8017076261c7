package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	logrtesting "github.com/go-logr/logr/testing"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/controller"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/geo"
	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/source"
)

type fakeResolver struct {
	countries map[string]string
	broken    bool
}

func (f *fakeResolver) Country(addr netip.Addr) (string, error) {
	if f.broken {
		return "", fmt.Errorf("%w: truncated file", geo.ErrUnavailable)
	}
	code, ok := f.countries[addr.String()]
	if !ok {
		return "", geo.ErrNotFound
	}
	return code, nil
}

func (f *fakeResolver) Close() error { return nil }

// fakeDNS keeps a record store and logs every call.
type fakeDNS struct {
	mu      sync.Mutex
	records []dns.Record
	nextID  int
	calls   []string
}

func (f *fakeDNS) List(_ context.Context, hostname string) ([]dns.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list "+hostname)
	var out []dns.Record
	for _, r := range f.records {
		if dns.MatchName(r.Hostname, hostname) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDNS) Create(_ context.Context, record dns.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create "+record.Value)
	f.nextID++
	record.ID = fmt.Sprintf("rec-%d", f.nextID)
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDNS) Delete(_ context.Context, record dns.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete "+record.ID)
	for i, r := range f.records {
		if r.ID == record.ID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type fixture struct {
	pipeline *Pipeline
	dns      *fakeDNS
	artifact string
}

func newFixture(t *testing.T, remote, local string, resolver geo.Resolver) *fixture {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(remote))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	localPath := filepath.Join(dir, "sgcs.txt")
	if local != "" {
		if err := os.WriteFile(localPath, []byte(local), 0644); err != nil {
			t.Fatal(err)
		}
	}

	fake := &fakeDNS{records: []dns.Record{
		{ID: "old-a", Hostname: "example.com", Type: "A", Value: "7.7.7.7", TTL: 60},
		{ID: "old-cname", Hostname: "example.com", Type: "CNAME", Value: "legacy.example.net", TTL: 300},
		{ID: "keep", Hostname: "www.example.com", Type: "A", Value: "6.6.6.6", TTL: 60},
	}}

	log := logrtesting.NewTestLogger(t)
	artifactPath := filepath.Join(dir, "sgfd_ips.txt")
	return &fixture{
		pipeline: &Pipeline{
			Log: log,
			Source: &source.Aggregator{
				URLs:      []string{srv.URL},
				LocalPath: localPath,
				Client:    srv.Client(),
				Log:       log.WithName("source"),
			},
			Geo:          resolver,
			Country:      "SG",
			ArtifactPath: artifactPath,
			Reconciler: &controller.RecordSetReconciler{
				Log:      log.WithName("controller"),
				DNS:      fake,
				Hostname: "example.com",
			},
		},
		dns:      fake,
		artifact: artifactPath,
	}
}

func scenarioResolver() *fakeResolver {
	return &fakeResolver{countries: map[string]string{
		"1.2.3.4": "SG",
		"9.9.9.9": "US",
	}}
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, "1.2.3.4#100ms\n5.6.7.8#bad\n", "9.9.9.9\n", scenarioResolver())

	report, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(f.artifact)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "1.2.3.4#SG\n" {
		t.Errorf("expected artifact '1.2.3.4#SG\\n', got %q", string(data))
	}

	wantCalls := "list example.com,delete old-a,delete old-cname,create 1.2.3.4"
	if got := strings.Join(f.dns.calls, ","); got != wantCalls {
		t.Errorf("expected DNS calls %q, got %q", wantCalls, got)
	}

	var created []dns.Record
	for _, r := range f.dns.records {
		if r.Hostname == "example.com" {
			created = append(created, r)
		}
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one example.com record, got %v", created)
	}
	rec := created[0]
	if rec.Type != "A" || rec.Value != "1.2.3.4" || rec.TTL != 60 || rec.Proxied {
		t.Errorf("unexpected created record %+v", rec)
	}

	if report.Fetched != 3 || report.Matched != 1 || report.Unique != 1 || report.Skipped {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Sync.Deleted != 2 || report.Sync.Created != 1 {
		t.Errorf("unexpected sync result %+v", report.Sync)
	}
}

func TestRun_DuplicateAcrossSources(t *testing.T) {
	f := newFixture(t, "1.1.1.1#remote\n", "1.1.1.1#local\n", &fakeResolver{countries: map[string]string{"1.1.1.1": "SG"}})

	report, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Matched != 2 || report.Unique != 1 {
		t.Errorf("expected 2 matches collapsed to 1, got %+v", report)
	}

	data, _ := os.ReadFile(f.artifact)
	if string(data) != "1.1.1.1#SG\n" {
		t.Errorf("expected single artifact line, got %q", string(data))
	}
}

func TestRun_EmptyResultLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, "9.9.9.9\n10.0.0.1\n", "", scenarioResolver())

	previous := "8.8.4.4#SG\n"
	if err := os.WriteFile(f.artifact, []byte(previous), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Skipped {
		t.Error("expected run to be skipped")
	}

	data, _ := os.ReadFile(f.artifact)
	if string(data) != previous {
		t.Errorf("expected artifact unchanged, got %q", string(data))
	}
	if len(f.dns.calls) != 0 {
		t.Errorf("expected no DNS calls, got %v", f.dns.calls)
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t, "1.2.3.4#100ms\n203.0.113.7\n", "9.9.9.9\n", &fakeResolver{countries: map[string]string{
		"1.2.3.4":     "SG",
		"203.0.113.7": "SG",
		"9.9.9.9":     "US",
	}})

	if _, err := f.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, _ := os.ReadFile(f.artifact)

	if _, err := f.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second, _ := os.ReadFile(f.artifact)

	if string(first) != string(second) {
		t.Errorf("expected identical artifacts, got %q then %q", first, second)
	}
	if string(first) != "1.2.3.4#SG\n203.0.113.7#SG\n" {
		t.Errorf("unexpected artifact %q", string(first))
	}

	var values []string
	for _, r := range f.dns.records {
		if r.Hostname == "example.com" {
			values = append(values, r.Value)
		}
	}
	if strings.Join(values, ",") != "1.2.3.4,203.0.113.7" {
		t.Errorf("expected record set to converge, got %v", values)
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t, "1.2.3.4\n", "", scenarioResolver())
	f.pipeline.DryRun = true

	report, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(f.artifact); !os.IsNotExist(err) {
		t.Errorf("expected no artifact in dry run, stat err = %v", err)
	}
	if strings.Join(f.dns.calls, ",") != "list example.com" {
		t.Errorf("expected only a list call, got %v", f.dns.calls)
	}
	if !strings.Contains(report.Plan, "+ A 1.2.3.4 ttl=60") || !strings.Contains(report.Plan, "id=old-cname") {
		t.Errorf("unexpected plan:\n%s", report.Plan)
	}
}

func TestRun_FetchErrorAborts(t *testing.T) {
	f := newFixture(t, "", "", scenarioResolver())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	f.pipeline.Source.(*source.Aggregator).URLs = []string{srv.URL}

	_, err := f.pipeline.Run(context.Background())
	var fe *source.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *source.FetchError, got %v", err)
	}
	if len(f.dns.calls) != 0 {
		t.Errorf("expected no DNS calls, got %v", f.dns.calls)
	}
}

func TestRun_GeoUnavailableAborts(t *testing.T) {
	f := newFixture(t, "1.2.3.4\n", "", &fakeResolver{broken: true})

	_, err := f.pipeline.Run(context.Background())
	if !errors.Is(err, geo.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, statErr := os.Stat(f.artifact); !os.IsNotExist(statErr) {
		t.Errorf("expected no artifact after abort, stat err = %v", statErr)
	}
	if len(f.dns.calls) != 0 {
		t.Errorf("expected no DNS calls, got %v", f.dns.calls)
	}
}
