package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"
)

// CapacityResult is the provisioner's answer: OK means the address has
// enough bandwidth/energy for the transfer; FallbackCost is what was paid in
// native token when the provisioner fell back to burning fees.
type CapacityResult struct {
	OK           bool
	FallbackCost *big.Int
}

// HTTPEnergyProvisioner calls the external energy/fee provisioning service.
type HTTPEnergyProvisioner struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEnergyProvisioner creates a provisioner client
func NewHTTPEnergyProvisioner(baseURL string, timeout time.Duration) *HTTPEnergyProvisioner {
	return &HTTPEnergyProvisioner{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ensureCapacityRequest struct {
	Address       string `json:"address"`
	EstimatedCost string `json:"estimatedCost"`
}

type ensureCapacityResponse struct {
	OK           bool   `json:"ok"`
	FallbackCost string `json:"fallbackCostInNativeToken"`
}

// EnsureCapacity asks the provisioner to cover estimatedCost for the address.
func (p *HTTPEnergyProvisioner) EnsureCapacity(ctx context.Context, address string, estimatedCost *big.Int) (*CapacityResult, error) {
	body, err := json.Marshal(ensureCapacityRequest{
		Address:       address,
		EstimatedCost: estimatedCost.String(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/capacity", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("energy provisioner returned status %d", resp.StatusCode)
	}

	var out ensureCapacityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	result := &CapacityResult{OK: out.OK, FallbackCost: big.NewInt(0)}
	if out.FallbackCost != "" {
		cost, ok := new(big.Int).SetString(out.FallbackCost, 10)
		if !ok {
			return nil, fmt.Errorf("energy provisioner returned invalid fallback cost %q", out.FallbackCost)
		}
		result.FallbackCost = cost
	}
	return result, nil
}
