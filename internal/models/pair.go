// Package models defines the core domain entities: pair snapshots, alerts, and trade commands.
package models

import (
	"errors"
	"time"
)

// PairSnapshot is one observation of a tradable token pair on a chain.
// Uses composite ID format "chainID:pairAddress" so the same contract address
// on two chains never collides. Immutable once fetched.
type PairSnapshot struct {
	ID             string    `json:"id"`
	ChainID        string    `json:"chain_id"`
	PairAddress    string    `json:"pair_address"`
	BaseSymbol     string    `json:"base_symbol"`
	BaseName       string    `json:"base_name,omitempty"`
	BaseAddress    string    `json:"base_address,omitempty"`
	QuoteSymbol    string    `json:"quote_symbol,omitempty"`
	PriceUSD       float64   `json:"price_usd"`
	LiquidityUSD   float64   `json:"liquidity_usd"`
	Volume24h      float64   `json:"volume_24h"`
	PriceChange24h float64   `json:"price_change_24h"`
	Creator        string    `json:"creator,omitempty"`
	PairCreatedAt  time.Time `json:"pair_created_at,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}

// PairID builds the composite snapshot ID.
func PairID(chainID, pairAddress string) string {
	return chainID + ":" + pairAddress
}

// Validate checks snapshot field constraints.
func (p *PairSnapshot) Validate() error {
	if p.ID == "" {
		return errors.New("pair ID must not be empty")
	}
	if p.ChainID == "" {
		return errors.New("chain ID must not be empty")
	}
	if p.PairAddress == "" {
		return errors.New("pair address must not be empty")
	}
	if p.LiquidityUSD < 0 {
		return errors.New("liquidity must not be negative")
	}
	if p.Volume24h < 0 {
		return errors.New("volume 24h must not be negative")
	}
	if p.ObservedAt.IsZero() {
		return errors.New("observed at must be set")
	}
	return nil
}

// Blacklist holds token and developer identifiers excluded from evaluation.
type Blacklist struct {
	coins map[string]struct{}
	devs  map[string]struct{}
}

// NewBlacklist builds a Blacklist from coin and dev identifier lists.
func NewBlacklist(coins, devs []string) Blacklist {
	b := Blacklist{
		coins: make(map[string]struct{}, len(coins)),
		devs:  make(map[string]struct{}, len(devs)),
	}
	for _, c := range coins {
		b.coins[c] = struct{}{}
	}
	for _, d := range devs {
		b.devs[d] = struct{}{}
	}
	return b
}

// BlocksPair reports whether the snapshot's token, pair address, or creator is
// blacklisted. Coin entries match the base token symbol, the base token
// address, or the pair address.
func (b Blacklist) BlocksPair(p *PairSnapshot) bool {
	for _, key := range []string{p.BaseSymbol, p.BaseAddress, p.PairAddress} {
		if key == "" {
			continue
		}
		if _, ok := b.coins[key]; ok {
			return true
		}
	}
	if p.Creator != "" {
		if _, ok := b.devs[p.Creator]; ok {
			return true
		}
	}
	return false
}

// Len returns the total number of blacklist entries.
func (b Blacklist) Len() int {
	return len(b.coins) + len(b.devs)
}
