package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const samplePair = `{
	"chainId": "ethereum",
	"pairAddress": "0xpair1",
	"baseToken": {"address": "0xbase", "name": "Token", "symbol": "TKN"},
	"quoteToken": {"symbol": "WETH"},
	"priceUsd": "1.25",
	"volume": {"h24": 100000},
	"priceChange": {"h24": 5},
	"liquidity": {"usd": 500},
	"pairCreatedAt": 1700000000000,
	"pairCreatedBy": "0xdev"
}`

func TestFetchPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ethereum" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprintf(w, `{"pairs": [%s]}`, samplePair)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 3)
	snaps, err := c.FetchPairs(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("FetchPairs: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	s := snaps[0]
	if s.ID != "ethereum:0xpair1" {
		t.Errorf("ID = %q", s.ID)
	}
	if s.PriceUSD != 1.25 {
		t.Errorf("PriceUSD = %f", s.PriceUSD)
	}
	if s.LiquidityUSD != 500 {
		t.Errorf("LiquidityUSD = %f", s.LiquidityUSD)
	}
	if s.Volume24h != 100000 {
		t.Errorf("Volume24h = %f", s.Volume24h)
	}
	if s.PriceChange24h != 5 {
		t.Errorf("PriceChange24h = %f", s.PriceChange24h)
	}
	if s.Creator != "0xdev" {
		t.Errorf("Creator = %q", s.Creator)
	}
	if s.ObservedAt.IsZero() {
		t.Error("ObservedAt not set")
	}
}

func TestFetchPairsSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One good record, one with no pair address, one with a bad price.
		fmt.Fprintf(w, `{"pairs": [%s,
			{"chainId": "ethereum", "pairAddress": "", "priceUsd": "1.0"},
			{"chainId": "ethereum", "pairAddress": "0xpair2", "priceUsd": "not-a-number"}
		]}`, samplePair)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 3)
	snaps, err := c.FetchPairs(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("FetchPairs: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1 (malformed records must be skipped)", len(snaps))
	}
	if snaps[0].PairAddress != "0xpair1" {
		t.Errorf("kept wrong record: %q", snaps[0].PairAddress)
	}
}

func TestFetchPairsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"pairs": [%s]}`, samplePair)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 5)
	snaps, err := c.FetchPairs(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("FetchPairs after retries: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server called %d times, want 3", n)
	}
}

func TestFetchPairsTransientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 2)
	_, err := c.FetchPairs(context.Background(), "bsc")
	if err == nil {
		t.Fatal("expected error")
	}
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientError, got %T: %v", err, err)
	}
	if transient.Chain != "bsc" {
		t.Errorf("Chain = %q", transient.Chain)
	}
}

func TestFetchPairsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, 5*time.Second, 10)
	if _, err := c.FetchPairs(ctx, "ethereum"); err == nil {
		t.Fatal("expected error after cancellation")
	}
}
