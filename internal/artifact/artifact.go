// Package artifact persists the filtered address set as a flat text file,
// one "address#CC" per line.
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/ipaddr"
)

// Write replaces the file at path with one tagged address per line. The
// content goes to a temporary file in the same directory first and is
// renamed over path, so readers never see a half-written artifact.
func Write(path string, entries []ipaddr.Tagged) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := w.WriteString(e.String() + "\n"); err != nil {
			return fmt.Errorf("writing artifact: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing artifact %s: %w", path, err)
	}
	return nil
}

// ReadAddresses returns the address part of every non-blank line.
func ReadAddresses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	var addrs []string
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		t, err := ipaddr.ParseTagged(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("artifact %s line %d: %w", path, n, err)
		}
		addrs = append(addrs, t.Addr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	return addrs, nil
}
