package blockchain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyProvisioner_EnsureCapacity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/capacity", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ensureCapacityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xdeposit", req.Address)
		assert.Equal(t, "210000", req.EstimatedCost)

		json.NewEncoder(w).Encode(ensureCapacityResponse{OK: true})
	}))
	defer srv.Close()

	p := NewHTTPEnergyProvisioner(srv.URL, 5*time.Second)
	result, err := p.EnsureCapacity(context.Background(), "0xdeposit", big.NewInt(210000))
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Zero(t, result.FallbackCost.Sign())
}

func TestEnergyProvisioner_FallbackCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ensureCapacityResponse{OK: true, FallbackCost: "8000"})
	}))
	defer srv.Close()

	p := NewHTTPEnergyProvisioner(srv.URL, 5*time.Second)
	result, err := p.EnsureCapacity(context.Background(), "0xdeposit", big.NewInt(210000))
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, big.NewInt(8000), result.FallbackCost)
}

func TestEnergyProvisioner_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPEnergyProvisioner(srv.URL, 5*time.Second)
	_, err := p.EnsureCapacity(context.Background(), "0xdeposit", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEnergyProvisioner_InvalidFallbackCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ensureCapacityResponse{OK: true, FallbackCost: "not-a-number"})
	}))
	defer srv.Close()

	p := NewHTTPEnergyProvisioner(srv.URL, 5*time.Second)
	_, err := p.EnsureCapacity(context.Background(), "0xdeposit", big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fallback cost")
}

func TestEnergyProvisioner_Unreachable(t *testing.T) {
	p := NewHTTPEnergyProvisioner("http://127.0.0.1:0", 100*time.Millisecond)
	_, err := p.EnsureCapacity(context.Background(), "0xdeposit", big.NewInt(1))
	assert.Error(t, err)
}
