// Package geo looks up coarse location data for an IP via ip-api.com. The
// result only feeds optional locale hints on the OneSignal identity, so every
// failure path degrades to "no hints".
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const defaultBaseURL = "http://ip-api.com/json"

// Data is the subset of the ip-api.com response this service uses.
type Data struct {
	IP          string  `json:"query"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	Status      string  `json:"status"`
}

// Client queries ip-api.com.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new geo lookup client.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup resolves geo data for an IP. Returns nil (not an error) when the
// service cannot resolve the address.
func (c *Client) Lookup(ctx context.Context, ip string) (*Data, error) {
	var data Data

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+ip, nil)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ip-api: HTTP %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&data)
		},
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	if data.Status != "success" {
		return nil, nil
	}
	return &data, nil
}
