package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/dns"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	listPageSize   = 100
)

func init() {
	dns.Register("cloudflare", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for a single Cloudflare zone.
type Provider struct {
	baseURL  string
	apiToken string
	zoneID   string
	client   *http.Client
	log      logr.Logger
}

// New creates a Cloudflare DNS provider from the given settings map.
// Required settings: api_token, zone_id.
// Optional settings: base_url (default the public v4 API), timeout (Go duration, default none).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	apiToken := settings["api_token"]
	if apiToken == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}
	zoneID := settings["zone_id"]
	if zoneID == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'zone_id'")
	}

	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &http.Client{}
	if v := settings["timeout"]; v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: invalid timeout %q: %w", v, err)
		}
		client.Timeout = timeout
	}

	return &Provider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		zoneID:   zoneID,
		client:   client,
		log:      log,
	}, nil
}

// apiError is a single entry of the "errors" array in a v4 response envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// listResponse is the envelope returned by the dns_records list endpoint.
type listResponse struct {
	Success    bool        `json:"success"`
	Errors     []apiError  `json:"errors"`
	Result     []dnsRecord `json:"result"`
	ResultInfo resultInfo  `json:"result_info"`
}

// writeResponse is the envelope returned by create and delete calls.
type writeResponse struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
	Result  struct {
		ID string `json:"id"`
	} `json:"result"`
}

// dnsRecord is the wire form of a Cloudflare DNS record.
type dnsRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	Comment string `json:"comment,omitempty"`
}

func (r dnsRecord) toRecord() dns.Record {
	rec := dns.Record{
		ID:       r.ID,
		Hostname: r.Name,
		Type:     r.Type,
		Value:    r.Content,
		TTL:      r.TTL,
		Proxied:  r.Proxied,
	}
	if r.Comment != "" {
		rec.Meta = map[string]string{"comment": r.Comment}
	}
	return rec
}

func formatErrors(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}

// doRequest builds and executes an HTTP request against the zone's API.
func (p *Provider) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := fmt.Sprintf("%s/zones/%s/%s", p.baseURL, url.PathEscape(p.zoneID), strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// List returns all records in the zone named exactly hostname, following
// pagination until the last page.
func (p *Provider) List(ctx context.Context, hostname string) ([]dns.Record, error) {
	p.log.V(1).Info("listing records", "hostname", hostname)

	var records []dns.Record
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(listPageSize))

		lr, err := p.listPage(ctx, query)
		if err != nil {
			return nil, err
		}

		for _, r := range lr.Result {
			if dns.MatchName(r.Name, hostname) {
				records = append(records, r.toRecord())
			}
		}

		if lr.ResultInfo.TotalPages <= page || len(lr.Result) == 0 {
			break
		}
	}

	p.log.V(1).Info("listed records", "hostname", hostname, "count", len(records))
	return records, nil
}

func (p *Provider) listPage(ctx context.Context, query url.Values) (*listResponse, error) {
	resp, err := p.doRequest(ctx, http.MethodGet, "dns_records", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cloudflare: list dns_records returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("cloudflare: decode list response: %w", err)
	}
	if !lr.Success {
		return nil, fmt.Errorf("cloudflare: list dns_records failed: %s", formatErrors(lr.Errors))
	}
	return &lr, nil
}

// Create adds a new DNS record to the zone.
func (p *Provider) Create(ctx context.Context, record dns.Record) error {
	p.log.V(1).Info("creating record", "hostname", record.Hostname, "type", record.Type, "value", record.Value)

	body := dnsRecord{
		Type:    record.Type,
		Name:    dns.NormalizeName(record.Hostname),
		Content: record.Value,
		TTL:     record.TTL,
		Proxied: record.Proxied,
	}
	if record.Meta != nil {
		body.Comment = record.Meta["comment"]
	}

	resp, err := p.doRequest(ctx, http.MethodPost, "dns_records", nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cloudflare: create dns_record returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("cloudflare: decode create response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("cloudflare: create dns_record failed: %s", formatErrors(result.Errors))
	}

	p.log.V(1).Info("record created", "id", result.Result.ID)
	return nil
}

// Delete removes the record with record.ID from the zone.
func (p *Provider) Delete(ctx context.Context, record dns.Record) error {
	if record.ID == "" {
		return fmt.Errorf("cloudflare: cannot delete %s/%s without a record id", record.Hostname, record.Type)
	}
	p.log.V(1).Info("deleting record", "id", record.ID, "hostname", record.Hostname, "type", record.Type)

	resp, err := p.doRequest(ctx, http.MethodDelete, "dns_records/"+url.PathEscape(record.ID), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cloudflare: delete dns_record %s returned status %d: %s", record.ID, resp.StatusCode, string(respBody))
	}

	p.log.V(1).Info("record deleted", "id", record.ID)
	return nil
}
