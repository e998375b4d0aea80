// Package discovery finds newly listed tokens, deduplicates them against a
// persisted known-set and hands validated candidates to the trading engine.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	dexScreenerProfilesURL = "https://api.dexscreener.com/token-profiles/latest/v1"
	birdeyeListingsURL     = "https://public-api.birdeye.so/defi/v2/tokens/new_listing"
)

// Feed is one source of freshly listed token addresses.
type Feed interface {
	Name() string

	// Latest returns recently listed mint addresses, newest first.
	Latest(ctx context.Context) ([]string, error)
}

func fetchFeedJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DexScreenerFeed reads the latest token profiles endpoint.
type DexScreenerFeed struct {
	url    string
	client *http.Client
}

// NewDexScreenerFeed creates the feed. url is overridable for tests.
func NewDexScreenerFeed(url string, client *http.Client) *DexScreenerFeed {
	if url == "" {
		url = dexScreenerProfilesURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DexScreenerFeed{url: url, client: client}
}

func (f *DexScreenerFeed) Name() string { return "dexscreener" }

type dexScreenerProfile struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
}

func (f *DexScreenerFeed) Latest(ctx context.Context) ([]string, error) {
	var profiles []dexScreenerProfile
	if err := fetchFeedJSON(ctx, f.client, f.url, nil, &profiles); err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p.ChainID == "solana" && p.TokenAddress != "" {
			addresses = append(addresses, p.TokenAddress)
		}
	}
	return addresses, nil
}

var _ Feed = (*DexScreenerFeed)(nil)

// BirdeyeFeed reads the Birdeye new-listings endpoint. Requires an API key.
type BirdeyeFeed struct {
	url    string
	apiKey string
	client *http.Client
}

// NewBirdeyeFeed creates the feed. An empty apiKey makes Latest a no-op.
func NewBirdeyeFeed(baseURL, apiKey string, client *http.Client) *BirdeyeFeed {
	if baseURL == "" {
		baseURL = birdeyeListingsURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BirdeyeFeed{url: baseURL, apiKey: apiKey, client: client}
}

func (f *BirdeyeFeed) Name() string { return "birdeye" }

type birdeyeListingsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Address string `json:"address"`
		} `json:"items"`
	} `json:"data"`
}

func (f *BirdeyeFeed) Latest(ctx context.Context) ([]string, error) {
	if f.apiKey == "" {
		return nil, nil
	}

	u := f.url
	if _, err := url.Parse(u); err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}

	var resp birdeyeListingsResponse
	headers := map[string]string{"X-API-KEY": f.apiKey, "x-chain": "solana"}
	if err := fetchFeedJSON(ctx, f.client, u, headers, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("birdeye listings: unsuccessful response")
	}

	addresses := make([]string, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		if item.Address != "" {
			addresses = append(addresses, item.Address)
		}
	}
	return addresses, nil
}

var _ Feed = (*BirdeyeFeed)(nil)
