package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDriver_Poll(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vm": [["vm-1"], ["vm-2"]], "cpu_count": [["vm-1", 4]]}`))
	}))
	defer server.Close()

	d := NewHTTPDriver()
	config := map[string]string{"url": server.URL, "token": "s3cret"}
	require.NoError(t, d.Validate(config))

	snap, err := d.Poll(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, []string{"cpu_count", "vm"}, snap.Tables)
	assert.Len(t, snap.Facts, 3)
}

func TestHTTPDriver_PollErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewHTTPDriver()
	_, err := d.Poll(context.Background(), map[string]string{"url": server.URL})
	assert.ErrorContains(t, err, "500")
}

func TestHTTPDriver_Validate(t *testing.T) {
	d := NewHTTPDriver()

	assert.Error(t, d.Validate(nil))
	assert.Error(t, d.Validate(map[string]string{"url": "ftp://example.com"}))
	assert.Error(t, d.Validate(map[string]string{"url": "http://x", "timeout": "soon"}))
	assert.NoError(t, d.Validate(map[string]string{"url": "https://example.com/facts", "timeout": "5s"}))
}
