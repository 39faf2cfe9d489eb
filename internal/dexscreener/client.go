// Package dexscreener provides a read-only client for the DexScreener pairs API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"dexwatch/internal/logger"
	"dexwatch/internal/models"
)

// TransientError marks a fetch failure that should be retried on the next cycle:
// network errors, timeouts, rate limits, and server errors.
type TransientError struct {
	Chain string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error for chain %s: %v", e.Chain, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Client provides access to the DexScreener pairs API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// pairRecord is the wire shape of a single pair in a DexScreener response.
// priceUsd arrives as a decimal string; liquidity may be null.
type pairRecord struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Symbol string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PairCreatedAt int64  `json:"pairCreatedAt"` // unix millis
	PairCreatedBy string `json:"pairCreatedBy"`
}

type pairsResponse struct {
	Pairs []pairRecord `json:"pairs"`
}

// NewClient creates a new DexScreener client.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// FetchPairs retrieves the current pair snapshots for one chain.
// Request-level failures return a TransientError; a malformed record skips
// only that record.
func (c *Client) FetchPairs(ctx context.Context, chain string) ([]models.PairSnapshot, error) {
	resp, err := c.doRequest(ctx, c.baseURL+"/"+chain)
	if err != nil {
		return nil, &TransientError{Chain: chain, Err: err}
	}
	defer resp.Body.Close()

	var body pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransientError{Chain: chain, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	observedAt := time.Now().UTC()
	snapshots := make([]models.PairSnapshot, 0, len(body.Pairs))
	skipped := 0
	for i := range body.Pairs {
		snap, err := toSnapshot(&body.Pairs[i], observedAt)
		if err != nil {
			skipped++
			logger.Warn("Skipping malformed pair record on %s: %v", chain, err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if skipped > 0 {
		logger.Debug("Chain %s: %d of %d records skipped as malformed", chain, skipped, len(body.Pairs))
	}

	return snapshots, nil
}

func toSnapshot(rec *pairRecord, observedAt time.Time) (models.PairSnapshot, error) {
	if rec.PairAddress == "" {
		return models.PairSnapshot{}, fmt.Errorf("missing pair address")
	}
	if rec.ChainID == "" {
		return models.PairSnapshot{}, fmt.Errorf("missing chain ID for pair %s", rec.PairAddress)
	}

	var price float64
	if rec.PriceUSD != "" {
		var err error
		price, err = strconv.ParseFloat(rec.PriceUSD, 64)
		if err != nil {
			return models.PairSnapshot{}, fmt.Errorf("bad priceUsd %q for pair %s: %w", rec.PriceUSD, rec.PairAddress, err)
		}
	}

	var liquidity float64
	if rec.Liquidity != nil {
		liquidity = rec.Liquidity.USD
	}

	snap := models.PairSnapshot{
		ID:             models.PairID(rec.ChainID, rec.PairAddress),
		ChainID:        rec.ChainID,
		PairAddress:    rec.PairAddress,
		BaseSymbol:     rec.BaseToken.Symbol,
		BaseName:       rec.BaseToken.Name,
		BaseAddress:    rec.BaseToken.Address,
		QuoteSymbol:    rec.QuoteToken.Symbol,
		PriceUSD:       price,
		LiquidityUSD:   liquidity,
		Volume24h:      rec.Volume.H24,
		PriceChange24h: rec.PriceChange.H24,
		Creator:        rec.PairCreatedBy,
		ObservedAt:     observedAt,
	}
	if rec.PairCreatedAt > 0 {
		snap.PairCreatedAt = time.UnixMilli(rec.PairCreatedAt).UTC()
	}
	if err := snap.Validate(); err != nil {
		return models.PairSnapshot{}, err
	}
	return snap, nil
}

// doRequest performs the HTTP request with exponential-backoff retry on
// network errors, rate limits, and server errors.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	retry := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    5 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.Duration()):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
