// Package rugcheck provides an optional trust-rating gate for pairs.
package rugcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dexwatch/internal/logger"
)

// Client queries the RugCheck rating API. Only pairs rated "good" are trusted;
// a failed lookup counts as untrusted so the pair is skipped, not alerted on.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ratingResponse struct {
	Rating string `json:"rating"`
}

// NewClient creates a new RugCheck client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IsTrusted reports whether the pair is rated "good".
func (c *Client) IsTrusted(ctx context.Context, pairAddress string) bool {
	u, err := url.Parse(c.baseURL + "/api/check")
	if err != nil {
		logger.Error("Bad RugCheck URL: %v", err)
		return false
	}
	q := u.Query()
	q.Set("token_address", pairAddress)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("RugCheck lookup failed for %s: %v", pairAddress, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("RugCheck returned %d for %s", resp.StatusCode, pairAddress)
		return false
	}

	var body ratingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Warn("RugCheck response malformed for %s: %v", pairAddress, err)
		return false
	}

	return strings.EqualFold(body.Rating, "good")
}
