package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

// Config carries everything the client needs at construction time. Nothing
// is read from ambient process state inside call paths.
type Config struct {
	BaseURL       string
	AccessToken   string
	WebhookSecret string
	LocationID    string
	Timeout       time.Duration
}

// Client talks to the POS platform's Orders API. It is the engine's order
// fetcher and the reconcile job's order lister.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://connect.squareup.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("square: %s: %w", path, recon.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("square: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RetrieveOrder fetches the authoritative full order by external id.
// Wraps recon.ErrNotFound when the platform does not know the id.
func (c *Client) RetrieveOrder(ctx context.Context, externalID string) (*recon.OrderFragment, error) {
	var resp struct {
		Order *recon.OrderFragment `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(externalID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("square: order %s: %w", externalID, recon.ErrNotFound)
	}
	return resp.Order, nil
}

// SearchOrders lists full orders updated inside the time range for one
// location, following the cursor until exhausted. Used by the out-of-band
// reconciliation job, never per-event.
func (c *Client) SearchOrders(ctx context.Context, begin, end time.Time, locationID string) ([]*recon.OrderFragment, error) {
	if locationID == "" {
		locationID = c.cfg.LocationID
	}

	var out []*recon.OrderFragment
	cursor := ""
	for {
		body := map[string]any{
			"location_ids": []string{locationID},
			"query": map[string]any{
				"filter": map[string]any{
					"date_time_filter": map[string]any{
						"updated_at": map[string]any{
							"start_at": begin.UTC().Format(time.RFC3339),
							"end_at":   end.UTC().Format(time.RFC3339),
						},
					},
				},
				"sort": map[string]any{"sort_field": "UPDATED_AT", "sort_order": "ASC"},
			},
		}
		if cursor != "" {
			body["cursor"] = cursor
		}

		var resp struct {
			Orders []*recon.OrderFragment `json:"orders"`
			Cursor string                 `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodPost, "/v2/orders/search", body, &resp); err != nil {
			return out, err
		}
		out = append(out, resp.Orders...)
		if resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}
