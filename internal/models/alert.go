package models

import (
	"errors"
	"fmt"
	"time"
)

// AlertKind identifies the classification rule that produced an alert.
type AlertKind string

const (
	AlertFakeVolume AlertKind = "fake_volume"
	AlertRugPull    AlertKind = "rug_pull"
	AlertPumpDump   AlertKind = "pump_dump"
)

// Alert is a classification result for a single pair snapshot.
type Alert struct {
	ID         string       `json:"id"`
	Kind       AlertKind    `json:"kind"`
	Pair       PairSnapshot `json:"pair"`
	Reason     string       `json:"reason"`
	DetectedAt time.Time    `json:"detected_at"`
	Notified   bool         `json:"notified"`
}

// TradeAction is the direction of a trade command.
type TradeAction string

const (
	TradeBuy  TradeAction = "buy"
	TradeSell TradeAction = "sell"
)

// Command validation errors, surfaced verbatim to the requester.
var (
	ErrNonPositiveAmount = errors.New("amount must be a positive number")
	ErrEmptyPairAddress  = errors.New("pair address must not be empty")
)

// TradeCommand is a user-issued buy/sell intent forwarded to a trade executor.
type TradeCommand struct {
	Action      TradeAction
	PairAddress string
	AmountUnits float64
	ChainID     string
}

// Validate checks the command against the supported chain set before forwarding.
func (c *TradeCommand) Validate(supportedChains []string) error {
	if c.Action != TradeBuy && c.Action != TradeSell {
		return fmt.Errorf("unknown trade action %q", c.Action)
	}
	if c.PairAddress == "" {
		return ErrEmptyPairAddress
	}
	if c.AmountUnits <= 0 {
		return ErrNonPositiveAmount
	}
	for _, chain := range supportedChains {
		if c.ChainID == chain {
			return nil
		}
	}
	return fmt.Errorf("unsupported chain %q (supported: %v)", c.ChainID, supportedChains)
}
