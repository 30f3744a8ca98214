// Package sources fetches raw items from public listing APIs.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chr1sbest/pipegate/internal/atomicfile"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

// Source is one adapter producing raw items.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// maxBody bounds how much of a response we read.
const maxBody = 8 << 20

// getJSON issues a GET and decodes a 200 response into v. Every failure is
// reported as a transport error.
func getJSON(ctx context.Context, client *http.Client, op, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return runerr.Transport(op, err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return runerr.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return runerr.Transport(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return runerr.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func httpClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: timeout}
}

// Multi fetches from each source in order and concatenates the results.
// The first failing source fails the whole fetch.
type Multi struct {
	sources []Source
}

func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Fetch(ctx context.Context) ([]model.RawItem, error) {
	if len(m.sources) == 0 {
		return nil, runerr.Newf(runerr.KindTransport, "fetch", "no sources configured")
	}
	var all []model.RawItem
	for _, s := range m.sources {
		items, err := s.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		all = append(all, items...)
	}
	return all, nil
}

// WriteSnapshot persists items as JSON lines at path.
func WriteSnapshot(path string, items []model.RawItem) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode raw item %s: %w", item.ObjectID, err)
		}
	}
	return atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadSnapshot loads a raw.jsonl file written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]model.RawItem, error) {
	dec := json.NewDecoder(r)
	var items []model.RawItem
	for {
		var item model.RawItem
		err := dec.Decode(&item)
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode raw snapshot: %w", err)
		}
		items = append(items, item)
	}
}
