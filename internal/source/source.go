// Package source collects raw IP list entries from remote lists and an
// optional local file.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-logr/logr"
)

// maxLineSize bounds a single list line.
const maxLineSize = 1 << 20

// FetchError reports a remote list that could not be retrieved. It aborts the run.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Aggregator gathers raw entries: every remote URL in order, then the local file.
type Aggregator struct {
	URLs      []string
	LocalPath string // optional, skipped when empty or missing
	Client    *http.Client
	Log       logr.Logger
}

// Fetch returns the concatenated raw lines of all sources.
func (a *Aggregator) Fetch(ctx context.Context) ([]string, error) {
	var lines []string
	for _, u := range a.URLs {
		remote, err := a.fetchRemote(ctx, u)
		if err != nil {
			return nil, err
		}
		a.Log.Info("fetched remote list", "url", u, "lines", len(remote))
		lines = append(lines, remote...)
	}

	local, err := a.readLocal()
	if err != nil {
		return nil, err
	}
	return append(lines, local...), nil
}

func (a *Aggregator) fetchRemote(ctx context.Context, u string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	lines, err := splitLines(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	return lines, nil
}

func (a *Aggregator) readLocal() ([]string, error) {
	if a.LocalPath == "" {
		return nil, nil
	}

	f, err := os.Open(a.LocalPath)
	if errors.Is(err, os.ErrNotExist) {
		a.Log.V(1).Info("local list not present, skipping", "path", a.LocalPath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening local list: %w", err)
	}
	defer f.Close()

	lines, err := splitLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading local list %s: %w", a.LocalPath, err)
	}
	a.Log.Info("read local list", "path", a.LocalPath, "lines", len(lines))
	return lines, nil
}

// splitLines splits on "\n", dropping a trailing "\r" from each line.
func splitLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
