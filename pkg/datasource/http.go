package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpDefaultTimeout bounds a single poll request.
const httpDefaultTimeout = 30 * time.Second

// HTTPDriver loads facts from a JSON endpoint. The endpoint returns a map of
// table names to lists of tuples, the JSON shape of Snapshot:
//
//	{"virtual_machine": [["vm-1"], ["vm-2"]], "network": [["vm-1", "net-1"]]}
//
// Config keys: url (required), token (optional bearer token), timeout
// (optional Go duration).
type HTTPDriver struct {
	client *http.Client
}

// NewHTTPDriver creates the HTTP driver.
func NewHTTPDriver() *HTTPDriver {
	return &HTTPDriver{client: &http.Client{}}
}

// Name returns the driver name.
func (d *HTTPDriver) Name() string { return "http" }

// Validate checks the url and timeout config values.
func (d *HTTPDriver) Validate(config map[string]string) error {
	raw, err := requireConfig(config, "url")
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if t := config["timeout"]; t != "" {
		if _, err := time.ParseDuration(t); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", t, err)
		}
	}
	return nil
}

// Poll fetches the endpoint and converts its tables to facts.
func (d *HTTPDriver) Poll(ctx context.Context, config map[string]string) (*Snapshot, error) {
	endpoint, err := requireConfig(config, "url")
	if err != nil {
		return nil, err
	}

	timeout := httpDefaultTimeout
	if t := config["timeout"]; t != "" {
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		timeout = parsed
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := config["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poll returned %s: %s", resp.Status, body)
	}

	// UseNumber keeps integer columns integral instead of collapsing
	// everything to float64.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var raw map[string][][]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	for _, tuples := range raw {
		for _, tuple := range tuples {
			for i, v := range tuple {
				if n, ok := v.(json.Number); ok {
					tuple[i] = numberValue(n)
				}
			}
		}
	}

	snap, err := NewSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid facts from %s: %w", endpoint, err)
	}
	return snap, nil
}

// numberValue converts a JSON number to int64 when integral, float64
// otherwise.
func numberValue(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
