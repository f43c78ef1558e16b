package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpify/mcpify/internal/errors"
	"github.com/mcpify/mcpify/internal/spec"
)

func httpConfig(baseURL string) *spec.Config {
	return &spec.Config{
		Name:    "api",
		Backend: spec.Backend{Kind: spec.KindHTTP, BaseURL: baseURL},
		Tools: []spec.Tool{
			{
				Name:     "get_user",
				Endpoint: "/users/{user_id}",
				Method:   "GET",
				Params: []spec.Param{
					{Name: "user_id", Type: spec.TypeInteger, Required: true},
					{Name: "verbose", Type: spec.TypeBoolean, Required: false},
				},
			},
			{
				Name:     "create_user",
				Endpoint: "/users",
				Method:   "POST",
				Params: []spec.Param{
					{Name: "name", Type: spec.TypeString, Required: true},
					{Name: "age", Type: spec.TypeInteger, Required: false, Default: int64(0)},
				},
			},
		},
	}
}

func TestHTTPGetWithPathAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "name": "ada"}`))
	}))
	defer srv.Close()

	d, err := New(httpConfig(srv.URL), Options{})
	require.NoError(t, err)
	defer d.httpClient.CloseIdleConnections()

	result := d.Invoke(context.Background(), "get_user",
		map[string]any{"user_id": 42, "verbose": true})
	require.True(t, result.OK, result.Message)

	assert.Equal(t, "/users/42", gotPath)
	assert.Equal(t, "verbose=true", gotQuery)

	payload, ok := result.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), payload["id"])
}

func TestHTTPPostSendsJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created": true}`))
	}))
	defer srv.Close()

	d, err := New(httpConfig(srv.URL), Options{})
	require.NoError(t, err)
	defer d.httpClient.CloseIdleConnections()

	result := d.Invoke(context.Background(), "create_user", map[string]any{"name": "ada"})
	require.True(t, result.OK, result.Message)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "ada", gotBody["name"])
	assert.Equal(t, float64(0), gotBody["age"], "default fills the missing optional")
}

func TestHTTPNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	}))
	defer srv.Close()

	d, err := New(httpConfig(srv.URL), Options{})
	require.NoError(t, err)
	defer d.httpClient.CloseIdleConnections()

	result := d.Invoke(context.Background(), "get_user", map[string]any{"user_id": 7})
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailBackendError, result.Kind)
	assert.Contains(t, result.Message, "404")
}

func TestHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	d, err := New(httpConfig(srv.URL), Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer d.httpClient.CloseIdleConnections()

	result := d.Invoke(context.Background(), "get_user", map[string]any{"user_id": 1})
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailTimeout, result.Kind)
}

func TestHTTPTransportError(t *testing.T) {
	d, err := New(httpConfig("http://127.0.0.1:1"), Options{Timeout: 2 * time.Second})
	require.NoError(t, err)

	result := d.Invoke(context.Background(), "get_user", map[string]any{"user_id": 1})
	assert.False(t, result.OK)
	assert.Equal(t, errors.FailRuntimeError, result.Kind)
}

func TestHTTPNonJSONBodyPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	d, err := New(httpConfig(srv.URL), Options{})
	require.NoError(t, err)
	defer d.httpClient.CloseIdleConnections()

	result := d.Invoke(context.Background(), "get_user", map[string]any{"user_id": 1})
	require.True(t, result.OK)
	assert.Equal(t, "plain text", result.Payload)
}
