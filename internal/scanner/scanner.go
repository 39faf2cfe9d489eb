// Package scanner drives the periodic fetch, classify, dedup, notify cycle.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dexwatch/internal/classifier"
	"dexwatch/internal/config"
	"dexwatch/internal/logger"
	"dexwatch/internal/models"
)

// Fetcher retrieves the current pair snapshots for one chain.
type Fetcher interface {
	FetchPairs(ctx context.Context, chain string) ([]models.PairSnapshot, error)
}

// Notifier delivers a batch of alerts. Delivery failure is logged, never fatal.
type Notifier interface {
	SendAlerts(alerts []models.Alert) error
}

// Verifier is an optional external trust gate for pairs.
type Verifier interface {
	IsTrusted(ctx context.Context, pairAddress string) bool
}

// Store is the persistence surface the scan cycle depends on.
type Store interface {
	LastSnapshot(pairID string) (*models.PairSnapshot, error)
	SavePairSnapshot(snap *models.PairSnapshot) error
	AppendHistory(snap *models.PairSnapshot) error
	RecordAndCheck(pairID string, kind models.AlertKind, now time.Time, cooldown time.Duration) (bool, error)
	AddAlert(alert *models.Alert) error
	RotatePairs() error
}

// Settings is the per-cycle behavior snapshot. It is reloadable between
// cycles without a process restart.
type Settings struct {
	Chains        []string
	Rules         classifier.Rules
	Blacklist     models.Blacklist
	Cooldown      time.Duration
	NewPairMaxAge time.Duration
	RequestDelay  time.Duration
}

// SettingsFromConfig maps the configuration surface onto scan settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Chains: cfg.DexScreener.Chains,
		Rules: classifier.Rules{
			MinLiquidity:    cfg.Filters.MinLiquidity,
			MinVolume24h:    cfg.Filters.MinVolume24h,
			MinPriceChange:  cfg.Filters.MinPriceChange,
			FakeVolumeRatio: cfg.Monitor.FakeVolumeRatio,
			PumpThreshold:   cfg.Monitor.PumpThreshold,
			RugWindow:       cfg.Monitor.RugWindow,
		},
		Blacklist:     models.NewBlacklist(cfg.Blacklist.Coins, cfg.Blacklist.Devs),
		Cooldown:      cfg.Monitor.Cooldown,
		NewPairMaxAge: cfg.Monitor.NewPairMaxAge,
		RequestDelay:  cfg.DexScreener.RequestDelay,
	}
}

// Scanner runs the scan cycle over the tracked chain universe.
type Scanner struct {
	store    Store
	fetcher  Fetcher
	notifier Notifier
	verifier Verifier
	settings Settings
	reload   func() (Settings, error)
	now      func() time.Time
}

// New creates a scanner. notifier may be nil when notifications are disabled.
func New(store Store, fetcher Fetcher, notifier Notifier, settings Settings) *Scanner {
	return &Scanner{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
	}
}

// SetVerifier installs an external trust gate; pairs it rejects are skipped.
func (s *Scanner) SetVerifier(v Verifier) {
	s.verifier = v
}

// SetReload installs a settings reload function invoked at the start of each
// cycle. A failed reload keeps the previous settings.
func (s *Scanner) SetReload(fn func() (Settings, error)) {
	s.reload = fn
}

// Run executes an immediate first cycle, then one cycle per tick until ctx is
// cancelled. Cycles run on this goroutine only, so they can never overlap; a
// cycle that outlasts the interval simply delays the next tick (the ticker
// drops missed ticks). onCycleDone, if non-nil, receives each cycle's result.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, onCycleDone func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce := func() {
		err := s.RunCycle(ctx)
		if onCycleDone != nil {
			onCycleDone(err)
		}
		if err := s.store.RotatePairs(); err != nil {
			logger.Warn("Failed to rotate pairs: %v", err)
		}
	}

	logger.Debug("Running initial scan cycle")
	runOnce()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scanner stopped")
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			runOnce()
		}
	}
}

// RunCycle performs one scan over all configured chains. A failure on one
// chain or one pair is isolated and logged; the cycle keeps going. It returns
// an error only when every chain fetch failed, or when ctx was cancelled.
// Cancellation is observed between pair evaluations, so an in-flight pair
// always finishes before the cycle stops.
func (s *Scanner) RunCycle(ctx context.Context) error {
	startTime := s.now()

	if s.reload != nil {
		if settings, err := s.reload(); err != nil {
			logger.Warn("Settings reload failed, keeping previous: %v", err)
		} else {
			s.settings = settings
		}
	}

	logger.Info("Starting scan cycle over %d chains", len(s.settings.Chains))

	var pending []models.Alert
	var scanned, failedChains int

	for i, chain := range s.settings.Chains {
		if err := ctx.Err(); err != nil {
			logger.Info("Scan cycle interrupted before chain %s", chain)
			return err
		}
		if i > 0 && s.settings.RequestDelay > 0 {
			time.Sleep(s.settings.RequestDelay)
		}

		snapshots, err := s.fetcher.FetchPairs(ctx, chain)
		if err != nil {
			failedChains++
			logger.Error("Fetch failed for chain %s: %v", chain, err)
			continue
		}
		logger.Debug("Chain %s: %d pairs fetched", chain, len(snapshots))

		for j := range snapshots {
			if err := ctx.Err(); err != nil {
				logger.Info("Scan cycle interrupted after %d pairs", scanned)
				return err
			}
			pending = append(pending, s.processPair(ctx, &snapshots[j])...)
			scanned++
		}
	}

	if len(s.settings.Chains) > 0 && failedChains == len(s.settings.Chains) {
		return fmt.Errorf("all %d chain fetches failed", failedChains)
	}

	s.dispatch(pending)

	logger.Info("Scan cycle completed in %v: %d pairs scanned, %d alerts passed dedup",
		time.Since(startTime), scanned, len(pending))
	return nil
}

// processPair evaluates one snapshot and returns the alerts that survived the
// cooldown dedup. All failures are logged and isolated to this pair.
func (s *Scanner) processPair(ctx context.Context, snap *models.PairSnapshot) []models.Alert {
	if s.verifier != nil && !s.verifier.IsTrusted(ctx, snap.PairAddress) {
		logger.Debug("Pair %s not trusted, skipping", snap.ID)
		return nil
	}

	prev, err := s.store.LastSnapshot(snap.ID)
	if err != nil {
		logger.Error("Failed to load previous snapshot for %s: %v", snap.ID, err)
		return nil
	}

	if prev == nil && s.settings.NewPairMaxAge > 0 && !snap.PairCreatedAt.IsZero() {
		if age := snap.ObservedAt.Sub(snap.PairCreatedAt); age < s.settings.NewPairMaxAge {
			logger.Info("New pair detected: %s (%s, age %v)", snap.ID, snap.BaseSymbol, age.Round(time.Minute))
		}
	}

	alerts := classifier.Classify(snap, prev, s.now(), s.settings.Rules, s.settings.Blacklist)

	if err := s.store.SavePairSnapshot(snap); err != nil {
		logger.Error("Failed to save snapshot for %s: %v", snap.ID, err)
		return nil
	}
	if s.settings.Rules.TracksPair(snap) {
		if err := s.store.AppendHistory(snap); err != nil {
			logger.Warn("Failed to append history for %s: %v", snap.ID, err)
		}
	}

	var surviving []models.Alert
	for _, alert := range alerts {
		notify, err := s.store.RecordAndCheck(snap.ID, alert.Kind, alert.DetectedAt, s.settings.Cooldown)
		if err != nil {
			logger.Error("Dedup check failed for %s/%s: %v", snap.ID, alert.Kind, err)
			continue
		}
		if !notify {
			logger.Debug("Alert %s for %s suppressed by cooldown", alert.Kind, snap.ID)
			continue
		}
		alert.ID = uuid.New().String()
		surviving = append(surviving, alert)
	}
	return surviving
}

// dispatch sends the surviving alerts and records them.
func (s *Scanner) dispatch(alerts []models.Alert) {
	if len(alerts) == 0 {
		logger.Info("No alerts above thresholds this cycle")
		return
	}

	delivered := false
	if s.notifier != nil {
		if err := s.notifier.SendAlerts(alerts); err != nil {
			logger.Error("Failed to send alert notification: %v", err)
		} else {
			logger.Info("Sent notification with %d alerts", len(alerts))
			delivered = true
		}
	} else {
		logger.Debug("Alerts detected but notifications disabled")
	}

	for i := range alerts {
		alerts[i].Notified = delivered
		if err := s.store.AddAlert(&alerts[i]); err != nil {
			logger.Error("Failed to record alert %s: %v", alerts[i].ID, err)
		}
	}
}
