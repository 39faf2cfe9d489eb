// Package classifier evaluates pair snapshots against configured threshold rules.
package classifier

import (
	"fmt"
	"math"
	"time"

	"dexwatch/internal/models"
)

// Rules holds the thresholds a snapshot is evaluated against.
type Rules struct {
	// MinLiquidity is the liquidity floor in quote-currency USD. The
	// liquidity-based rules fire only when liquidity is strictly below it.
	MinLiquidity float64
	// MinVolume24h and MinPriceChange are the tracking filter bounds; they
	// gate history persistence in the scanner, not classification.
	MinVolume24h   float64
	MinPriceChange float64
	// FakeVolumeRatio is the volume-to-liquidity multiple K: volume at least
	// liquidity*K with liquidity below MinLiquidity flags fake volume.
	FakeVolumeRatio float64
	// PumpThreshold is the absolute price-change percentage beyond which a
	// pump-and-dump alert fires, either direction.
	PumpThreshold float64
	// RugWindow bounds how old the previous snapshot may be for the
	// liquidity-drop comparison.
	RugWindow time.Duration
}

// TracksPair reports whether the snapshot passes the volume and price-change
// tracking filter.
func (r Rules) TracksPair(snap *models.PairSnapshot) bool {
	return snap.Volume24h >= r.MinVolume24h && snap.PriceChange24h >= r.MinPriceChange
}

// Classify evaluates one snapshot against the rules and blacklist. prev is the
// most recent earlier snapshot for the same pair, or nil. The rules are
// independent; all that match are returned. Pure function: identical inputs
// always produce identical output.
func Classify(snap *models.PairSnapshot, prev *models.PairSnapshot, now time.Time, rules Rules, blacklist models.Blacklist) []models.Alert {
	if blacklist.BlocksPair(snap) {
		return nil
	}

	var alerts []models.Alert

	// Fake volume: reported volume disproportionate to real depth.
	// Inclusive on the volume multiple, exclusive on the liquidity floor.
	if snap.Volume24h >= snap.LiquidityUSD*rules.FakeVolumeRatio && snap.LiquidityUSD < rules.MinLiquidity {
		alerts = append(alerts, models.Alert{
			Kind: models.AlertFakeVolume,
			Pair: *snap,
			Reason: fmt.Sprintf("volume $%.0f is at least %.0fx liquidity $%.0f (floor $%.0f)",
				snap.Volume24h, rules.FakeVolumeRatio, snap.LiquidityUSD, rules.MinLiquidity),
			DetectedAt: now,
		})
	}

	// Rug pull: liquidity fell below the floor from a previously healthy
	// level within the window.
	if prev != nil &&
		prev.LiquidityUSD >= rules.MinLiquidity &&
		snap.LiquidityUSD < rules.MinLiquidity &&
		snap.ObservedAt.Sub(prev.ObservedAt) <= rules.RugWindow {
		alerts = append(alerts, models.Alert{
			Kind: models.AlertRugPull,
			Pair: *snap,
			Reason: fmt.Sprintf("liquidity dropped from $%.0f to $%.0f (floor $%.0f) within %s",
				prev.LiquidityUSD, snap.LiquidityUSD, rules.MinLiquidity, rules.RugWindow),
			DetectedAt: now,
		})
	}

	// Pump and dump: extreme price movement in either direction, strictly
	// beyond the bound.
	if math.Abs(snap.PriceChange24h) > rules.PumpThreshold {
		alerts = append(alerts, models.Alert{
			Kind: models.AlertPumpDump,
			Pair: *snap,
			Reason: fmt.Sprintf("price changed %.1f%% in 24h (bound %.1f%%)",
				snap.PriceChange24h, rules.PumpThreshold),
			DetectedAt: now,
		})
	}

	return alerts
}
