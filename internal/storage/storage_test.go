package storage

import (
	"fmt"
	"testing"
	"time"

	"dexwatch/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(100, 10, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(chainID, pairAddress string, liquidity float64, observedAt time.Time) *models.PairSnapshot {
	return &models.PairSnapshot{
		ID:             models.PairID(chainID, pairAddress),
		ChainID:        chainID,
		PairAddress:    pairAddress,
		BaseSymbol:     "TKN",
		QuoteSymbol:    "WETH",
		PriceUSD:       1.0,
		LiquidityUSD:   liquidity,
		Volume24h:      50000,
		PriceChange24h: 2.5,
		Creator:        "0xdev",
		ObservedAt:     observedAt,
	}
}

func TestSaveAndLastSnapshot(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	snap := testSnapshot("ethereum", "0xpair", 5000, now)

	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}
	got, err := s.LastSnapshot(snap.ID)
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("LastSnapshot returned nil for stored pair")
	}
	if got.ID != snap.ID || got.LiquidityUSD != 5000 || got.BaseSymbol != "TKN" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestLastSnapshotUnknownPair(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.LastSnapshot("ethereum:0xnope")
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown pair, got %+v", got)
	}
}

func TestSavePairSnapshotUpdatesExisting(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	snap := testSnapshot("ethereum", "0xpair", 5000, now)
	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}

	later := *snap
	later.LiquidityUSD = 200
	later.ObservedAt = now.Add(5 * time.Minute)
	if err := s.SavePairSnapshot(&later); err != nil {
		t.Fatalf("SavePairSnapshot update: %v", err)
	}

	got, err := s.LastSnapshot(snap.ID)
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if got.LiquidityUSD != 200 {
		t.Errorf("liquidity not updated: got %f", got.LiquidityUSD)
	}
	if !got.ObservedAt.Equal(later.ObservedAt) {
		t.Errorf("observed_at not updated: got %v", got.ObservedAt)
	}
}

func TestSavePairSnapshotInvalid(t *testing.T) {
	s := newTestStorage(t)
	snap := testSnapshot("ethereum", "0xpair", 5000, time.Now())
	snap.ChainID = ""
	if err := s.SavePairSnapshot(snap); err == nil {
		t.Error("expected error for invalid snapshot")
	}
}

func TestRecordAndCheckCooldown(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	cooldown := 30 * time.Minute
	snap := testSnapshot("ethereum", "0xpair", 500, now)
	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}

	// First notification goes through.
	ok, err := s.RecordAndCheck(snap.ID, models.AlertFakeVolume, now, cooldown)
	if err != nil {
		t.Fatalf("RecordAndCheck: %v", err)
	}
	if !ok {
		t.Fatal("first RecordAndCheck should return true")
	}

	// Inside the cooldown: suppressed.
	ok, err = s.RecordAndCheck(snap.ID, models.AlertFakeVolume, now.Add(10*time.Minute), cooldown)
	if err != nil {
		t.Fatalf("RecordAndCheck: %v", err)
	}
	if ok {
		t.Error("RecordAndCheck within cooldown should return false")
	}

	// A different kind for the same pair is independent.
	ok, err = s.RecordAndCheck(snap.ID, models.AlertRugPull, now.Add(10*time.Minute), cooldown)
	if err != nil {
		t.Fatalf("RecordAndCheck: %v", err)
	}
	if !ok {
		t.Error("different alert kind should not share the cooldown")
	}

	// After the cooldown elapses from the original notification: allowed again.
	ok, err = s.RecordAndCheck(snap.ID, models.AlertFakeVolume, now.Add(cooldown), cooldown)
	if err != nil {
		t.Fatalf("RecordAndCheck: %v", err)
	}
	if !ok {
		t.Error("RecordAndCheck after cooldown should return true")
	}
}

func TestRecordAndCheckCooldownFromLastNotification(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	cooldown := 30 * time.Minute
	snap := testSnapshot("bsc", "0xpair", 500, now)
	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}

	if ok, _ := s.RecordAndCheck(snap.ID, models.AlertPumpDump, now, cooldown); !ok {
		t.Fatal("first check should pass")
	}
	// Repeated occurrences inside the cooldown must not extend it.
	for i := 1; i <= 5; i++ {
		at := now.Add(time.Duration(i) * 5 * time.Minute)
		if ok, _ := s.RecordAndCheck(snap.ID, models.AlertPumpDump, at, cooldown); ok {
			t.Fatalf("check at +%dm should be suppressed", i*5)
		}
	}
	// 30 minutes after the first notification the alert may fire again, even
	// though the condition recurred at +25m.
	if ok, _ := s.RecordAndCheck(snap.ID, models.AlertPumpDump, now.Add(cooldown), cooldown); !ok {
		t.Error("cooldown must be measured from the last notification, not the last occurrence")
	}
}

func TestAppendHistoryAndPrune(t *testing.T) {
	s, err := New(100, 3, ":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	now := time.Now()
	snap := testSnapshot("ethereum", "0xpair", 5000, now)
	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}

	for i := 0; i < 5; i++ {
		obs := *snap
		obs.LiquidityUSD = float64(1000 * (i + 1))
		obs.ObservedAt = now.Add(time.Duration(i) * time.Minute)
		if err := s.AppendHistory(&obs); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	history, err := s.History(snap.ID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d history rows, want 3 (pruned to cap)", len(history))
	}
	// Newest first, and the oldest rows were the ones pruned.
	if history[0].LiquidityUSD != 5000 {
		t.Errorf("newest row liquidity = %f, want 5000", history[0].LiquidityUSD)
	}
	if history[2].LiquidityUSD != 3000 {
		t.Errorf("oldest kept row liquidity = %f, want 3000", history[2].LiquidityUSD)
	}
}

func TestAddAndRecentAlerts(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	snap := testSnapshot("ethereum", "0xpair", 500, now)
	if err := s.SavePairSnapshot(snap); err != nil {
		t.Fatalf("SavePairSnapshot: %v", err)
	}

	for i, kind := range []models.AlertKind{models.AlertFakeVolume, models.AlertPumpDump} {
		alert := &models.Alert{
			ID:         fmt.Sprintf("alert-%d", i),
			Kind:       kind,
			Pair:       *snap,
			Reason:     "test",
			DetectedAt: now.Add(time.Duration(i) * time.Second),
			Notified:   true,
		}
		if err := s.AddAlert(alert); err != nil {
			t.Fatalf("AddAlert: %v", err)
		}
	}

	alerts, err := s.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].Kind != models.AlertPumpDump {
		t.Errorf("newest alert kind = %s, want %s", alerts[0].Kind, models.AlertPumpDump)
	}
	if !alerts[0].Notified {
		t.Error("notified flag lost")
	}
}

func TestRotatePairs(t *testing.T) {
	s, err := New(5, 10, ":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	now := time.Now()
	for i := 0; i < 10; i++ {
		snap := testSnapshot("ethereum", fmt.Sprintf("0xpair-%d", i), 5000, now)
		if err := s.SavePairSnapshot(snap); err != nil {
			t.Fatalf("SavePairSnapshot: %v", err)
		}
	}
	if err := s.RotatePairs(); err != nil {
		t.Fatalf("RotatePairs: %v", err)
	}

	var kept int
	for i := 0; i < 10; i++ {
		snap, err := s.LastSnapshot(models.PairID("ethereum", fmt.Sprintf("0xpair-%d", i)))
		if err != nil {
			t.Fatalf("LastSnapshot: %v", err)
		}
		if snap != nil {
			kept++
		}
	}
	if kept != 5 {
		t.Errorf("kept %d pairs after rotation, want 5", kept)
	}
}
