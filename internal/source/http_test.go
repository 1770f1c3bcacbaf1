package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceagg/engine/internal/aggregate"
)

func TestHTTPSourceFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"price":"177.50","volume":"100.25"}`))
	}))
	defer srv.Close()

	h := NewHTTPSource("test", time.Second, func(sym string) string { return srv.URL }, map[string]string{"SOL/USDC": "SOLUSDC"},
		func(body []byte, sym string) (float64, float64, error) {
			var r struct {
				Price  string `json:"price"`
				Volume string `json:"volume"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			p, err := parseStringFloat(r.Price)
			if err != nil {
				return 0, 0, err
			}
			v, err := parseStringFloat(r.Volume)
			if err != nil {
				return 0, 0, err
			}
			return p, v, nil
		})

	o, err := h.Fetch(context.Background(), "SOL/USDC")
	require.NoError(t, err)
	assert.InDelta(t, 177.50, o.Price, 1e-9)
	assert.InDelta(t, 100.25, o.Volume, 1e-9)
}

func TestHTTPSourceUnsupportedPair(t *testing.T) {
	h := NewHTTPSource("test", time.Second, func(sym string) string { return "" }, map[string]string{}, nil)
	_, err := h.Fetch(context.Background(), "ETH/USDC")
	require.Error(t, err)
	var aggErr *aggregate.Error
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, aggregate.KindUnsupported, aggErr.Kind)
}

func TestHTTPSourceRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := NewHTTPSource("test", time.Second, func(sym string) string { return srv.URL }, map[string]string{"SOL/USDC": "SOLUSDC"}, nil)
	_, err := h.Fetch(context.Background(), "SOL/USDC")
	require.Error(t, err)
	var aggErr *aggregate.Error
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, aggregate.KindRateLimited, aggErr.Kind)
}

func TestHTTPSourceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTPSource("test", time.Second, func(sym string) string { return srv.URL }, map[string]string{"SOL/USDC": "SOLUSDC"}, nil)
	_, err := h.Fetch(context.Background(), "SOL/USDC")
	require.Error(t, err)
	var aggErr *aggregate.Error
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, aggregate.KindNetworkError, aggErr.Kind)
}
