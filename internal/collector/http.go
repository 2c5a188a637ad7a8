package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"DemandSentinel/internal/model"
)

// HTTPSource reads from a REST ingestion service.
type HTTPSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPSource creates a source with optional proxy support.
func NewHTTPSource(baseURL, apiKey, proxyURL string) *HTTPSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPSource{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (s *HTTPSource) Name() string { return "http" }

// wireSale is the JSON shape served by the ingestion API.
type wireSale struct {
	EntityID  string  `json:"entity_id"`
	Timestamp int64   `json:"timestamp"`
	Quantity  float64 `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

func (s *HTTPSource) FetchSales(ctx context.Context, days int) ([]model.SalesRecord, error) {
	var wire []wireSale
	if err := s.get(ctx, fmt.Sprintf("/api/v1/sales?days=%d", days), "sales", &wire); err != nil {
		return nil, err
	}
	out := make([]model.SalesRecord, len(wire))
	for i, w := range wire {
		out[i] = model.SalesRecord{
			EntityID:  w.EntityID,
			Timestamp: time.Unix(w.Timestamp, 0).UTC(),
			Quantity:  w.Quantity,
			Revenue:   w.Revenue,
		}
	}
	return out, nil
}

func (s *HTTPSource) FetchInventory(ctx context.Context) ([]model.InventorySnapshot, error) {
	var out []model.InventorySnapshot
	if err := s.get(ctx, "/api/v1/inventory", "inventory", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) FetchSupplierAlerts(ctx context.Context) ([]model.SupplierAlert, error) {
	var raw []json.RawMessage
	if err := s.get(ctx, "/api/v1/supplier-alerts", "supplier alerts", &raw); err != nil {
		return nil, err
	}
	return decodeSupplierAlerts(raw)
}

func (s *HTTPSource) get(ctx context.Context, path, what string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fetch %s: status %d, body: %s", what, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
