// Package reports предоставляет клиент внешнего сервиса отчётности.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом отчётности.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// Snapshot описывает срез агрегатов выручки, отдаваемый сервисом отчётности.
type Snapshot struct {
	TotalRevenue         float64 `json:"total_revenue"`
	UserServiceFees      float64 `json:"user_service_fees"`
	CafeteriaCommissions float64 `json:"cafeteria_commissions"`
}

// NewClient создаёт HTTP-клиент для обращения к сервису отчётности по указанному адресу.
// Временные сбои и ответы 429 с Retry-After обрабатываются повторными запросами.
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

// GetRevenueSnapshot запрашивает агрегаты выручки за всё время.
func (c *Client) GetRevenueSnapshot(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("reports client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/reports/revenue", base)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &snap, nil
}
