// Package trade forwards validated buy/sell commands to a trade-execution bot.
package trade

import (
	"context"
	"fmt"

	"dexwatch/internal/logger"
	"dexwatch/internal/models"
)

// Executor submits a trade command for execution.
type Executor interface {
	Execute(ctx context.Context, cmd models.TradeCommand) error
}

// MessageSender delivers a plain text message to the configured chat. The
// Telegram client satisfies it.
type MessageSender interface {
	SendText(ctx context.Context, text string) error
}

// ToxiSol relays trade commands to a ToxiSol-style execution bot by posting
// the bot's command syntax into the chat it listens on.
type ToxiSol struct {
	botHandle string
	sender    MessageSender
}

// NewToxiSol creates a relay executor targeting the given bot handle.
func NewToxiSol(botHandle string, sender MessageSender) *ToxiSol {
	return &ToxiSol{botHandle: botHandle, sender: sender}
}

// Execute relays the command. The relay is fire-and-forget at the protocol
// level; a delivery failure surfaces as a TradeExecutionError to the caller.
func (t *ToxiSol) Execute(ctx context.Context, cmd models.TradeCommand) error {
	text := fmt.Sprintf("@%s /%s %s %g %s", t.botHandle, cmd.Action, cmd.PairAddress, cmd.AmountUnits, cmd.ChainID)
	if err := t.sender.SendText(ctx, text); err != nil {
		return fmt.Errorf("trade execution failed for %s: %w", cmd.PairAddress, err)
	}
	logger.Info("Relayed %s of %g units for %s (%s) to @%s", cmd.Action, cmd.AmountUnits, cmd.PairAddress, cmd.ChainID, t.botHandle)
	return nil
}
