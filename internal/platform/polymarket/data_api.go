package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// DataAPIClient is the REST client for the Polymarket Data API, which serves
// per-wallet activity history.
type DataAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataAPIClient creates a Data API client.
//
// baseURL is the API root, e.g. "https://data-api.polymarket.com".
func NewDataAPIClient(baseURL string) *DataAPIClient {
	return &DataAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetTradeActivity fetches TRADE activity for the wallet since the given
// time, newest first as the API returns it. Rows whose wallet does not match
// or that are not trades are dropped.
func (c *DataAPIClient) GetTradeActivity(ctx context.Context, wallet string, since time.Time) ([]domain.TradeEvent, error) {
	params := url.Values{}
	params.Set("user", strings.ToLower(wallet))
	params.Set("type", "TRADE")
	params.Set("start", strconv.FormatInt(since.Unix(), 10))
	params.Set("sortBy", "TIMESTAMP")
	params.Set("sortDirection", "DESC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/activity?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: create request: %w", err)
	}
	req.Header.Set("User-Agent", "copytracker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("polymarket/data: activity: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("polymarket/data: activity: unexpected status %d: %s",
			resp.StatusCode, string(body))
	}

	var rows []APIActivity
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
	}

	want := strings.ToLower(wallet)
	events := make([]domain.TradeEvent, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		if !strings.EqualFold(row.Type, "TRADE") || row.TransactionHash == "" {
			continue
		}
		if row.Wallet() != want {
			continue
		}
		events = append(events, row.ToDomainTradeEvent())
	}
	return events, nil
}
