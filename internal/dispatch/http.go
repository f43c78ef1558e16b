package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

// runHTTP issues one request against the http backend. Path placeholders
// are substituted URL-escaped; values not consumed by the path travel as
// query parameters for GET and DELETE and as a JSON body otherwise.
func (d *Dispatcher) runHTTP(ctx context.Context, tool *spec.Tool, values map[string]any) Result {
	method := tool.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := tool.Endpoint
	consumed := make(map[string]bool)
	for _, name := range spec.Placeholders(tool.Endpoint) {
		value, present := values[name]
		if !present {
			// validation guarantees the param exists; optional-without-value
			// leaves the segment empty rather than a literal brace pair
			value = ""
		}
		endpoint = strings.ReplaceAll(endpoint, "{"+name+"}",
			url.PathEscape(formatValue(value)))
		consumed[name] = true
	}

	target := strings.TrimRight(d.cfg.Backend.BaseURL, "/") + endpoint

	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		query := url.Values{}
		for name, value := range values {
			if !consumed[name] {
				query.Set(name, formatValue(value))
			}
		}
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}
	} else {
		payload := make(map[string]any)
		for name, value := range values {
			if !consumed[name] {
				payload[name] = value
			}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return failure(errors.FailRuntimeError,
				"tool %q: encoding request body: %v", tool.Name, err)
		}
		body = bytes.NewReader(data)
	}

	cctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, method, target, body)
	if err != nil {
		return failure(errors.FailRuntimeError,
			"tool %q: building request: %v", tool.Name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if goerrors.Is(err, context.DeadlineExceeded) || cctx.Err() == context.DeadlineExceeded {
			return failure(errors.FailTimeout,
				"tool %q: request exceeded %s", tool.Name, d.opts.Timeout)
		}
		return failure(errors.FailRuntimeError,
			"tool %q: request failed: %v", tool.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(errors.FailRuntimeError,
			"tool %q: reading response: %v", tool.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(errors.FailBackendError,
			"tool %q: %s %s returned %s: %s",
			tool.Name, method, endpoint, resp.Status, strings.TrimSpace(string(data)))
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		// non-JSON bodies pass through as text
		return success(string(data))
	}
	return success(payload)
}
