package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFearGreedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fng/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[{"value":"54","value_classification":"Greed","timestamp":"1740819600"}]}`)
	}))
	defer srv.Close()

	fng, err := NewFearGreedClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 54, fng.Value)
	assert.Equal(t, "Greed", fng.Classification)
	assert.Equal(t, time.Unix(1740819600, 0).UTC(), fng.Time)
}

func TestFearGreedFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFearGreedClient(srv.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "HTTP 502")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer empty.Close()

	_, err = NewFearGreedClient(empty.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "empty")
}
