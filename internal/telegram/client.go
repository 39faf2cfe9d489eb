// Package telegram provides the notification and command channel via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dexwatch/internal/logger"
	"dexwatch/internal/models"
	"dexwatch/internal/trade"
)

// CommandStore is the read-only storage surface exposed to bot commands.
type CommandStore interface {
	RecentAlerts(limit int) ([]models.Alert, error)
	History(pairID string, limit int) ([]models.PairSnapshot, error)
}

// Client handles Telegram notifications and bot commands.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled. Commands run concurrently with scan cycles and never touch
// scan state outside the storage layer.
func (c *Client) ListenForCommands(ctx context.Context, executor trade.Executor, store CommandStore, supportedChains []string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message, executor, store, supportedChains)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message, executor trade.Executor, store CommandStore, supportedChains []string) {
	switch msg.Command() {
	case "ping":
		c.reply(msg, "Pong")
	case "buy":
		c.handleTrade(ctx, msg, models.TradeBuy, executor, supportedChains)
	case "sell":
		c.handleTrade(ctx, msg, models.TradeSell, executor, supportedChains)
	case "alerts":
		c.handleAlerts(msg, store)
	case "history":
		c.handleHistory(msg, store)
	}
}

// handleTrade parses "/buy <pair_address> <amount> <chain_id>", validates the
// command, and forwards it to the executor. Every failure is reported back to
// the requester; a bad command never affects the scan cycle.
func (c *Client) handleTrade(ctx context.Context, msg *tgbotapi.Message, action models.TradeAction, executor trade.Executor, supportedChains []string) {
	if executor == nil {
		c.reply(msg, "Trading is disabled")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 3 {
		c.reply(msg, fmt.Sprintf("Usage: /%s <pair_address> <amount> <chain_id>", action))
		return
	}

	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		c.reply(msg, fmt.Sprintf("Invalid amount %q", args[1]))
		return
	}

	cmd := models.TradeCommand{
		Action:      action,
		PairAddress: args[0],
		AmountUnits: amount,
		ChainID:     args[2],
	}
	if err := cmd.Validate(supportedChains); err != nil {
		c.reply(msg, fmt.Sprintf("Rejected: %v", err))
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := executor.Execute(execCtx, cmd); err != nil {
		logger.Error("Trade execution failed: %v", err)
		c.reply(msg, fmt.Sprintf("Trade failed: %v", err))
		return
	}

	c.reply(msg, fmt.Sprintf("%s submitted: %g units of %s on %s",
		strings.ToUpper(string(action)), amount, cmd.PairAddress, cmd.ChainID))
}

func (c *Client) handleAlerts(msg *tgbotapi.Message, store CommandStore) {
	alerts, err := store.RecentAlerts(10)
	if err != nil {
		c.reply(msg, fmt.Sprintf("Failed to load alerts: %v", err))
		return
	}
	if len(alerts) == 0 {
		c.reply(msg, "No alerts recorded")
		return
	}

	var b strings.Builder
	b.WriteString("Recent alerts:\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s %s %s (%s) at %s\n",
			kindEmoji(a.Kind), a.Kind, a.Pair.BaseSymbol, a.Pair.ChainID,
			a.DetectedAt.Format("2006-01-02 15:04"))
	}
	c.reply(msg, b.String())
}

func (c *Client) handleHistory(msg *tgbotapi.Message, store CommandStore) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		c.reply(msg, "Usage: /history <chain_id> <pair_address>")
		return
	}

	history, err := store.History(models.PairID(args[0], args[1]), 10)
	if err != nil {
		c.reply(msg, fmt.Sprintf("Failed to load history: %v", err))
		return
	}
	if len(history) == 0 {
		c.reply(msg, "No observations recorded for that pair")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d observations for %s:%s\n", len(history), args[0], args[1])
	for _, snap := range history {
		fmt.Fprintf(&b, "%s  price $%.6f  liq $%.0f  vol24h $%.0f  Δ24h %.1f%%\n",
			snap.ObservedAt.Format("01-02 15:04"), snap.PriceUSD,
			snap.LiquidityUSD, snap.Volume24h, snap.PriceChange24h)
	}
	c.reply(msg, b.String())
}

func (c *Client) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to send reply: %v", err)
	}
}

// SendText delivers a plain text message to the configured chat. Satisfies
// trade.MessageSender for the ToxiSol relay.
func (c *Client) SendText(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a scan error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Scan error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Scanning recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendAlerts sends a notification with the surviving alerts of one cycle.
func (c *Client) SendAlerts(alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatAlerts(alerts))
}

func kindEmoji(kind models.AlertKind) string {
	switch kind {
	case models.AlertFakeVolume:
		return "💨"
	case models.AlertRugPull:
		return "🚨"
	case models.AlertPumpDump:
		return "🎢"
	default:
		return "❔"
	}
}

func kindLabel(kind models.AlertKind) string {
	switch kind {
	case models.AlertFakeVolume:
		return "Fake volume"
	case models.AlertRugPull:
		return "Rug pull risk"
	case models.AlertPumpDump:
		return "Pump and dump"
	default:
		return string(kind)
	}
}

// formatAlerts formats alerts into a Telegram MarkdownV2 message.
func formatAlerts(alerts []models.Alert) string {
	message := "🔎 *Suspicious pair activity*\n\n"
	message += fmt.Sprintf("📅 Detected: %s\n\n", escapeMarkdownV2(alerts[0].DetectedAt.Format("2006-01-02 15:04:05")))

	for i, alert := range alerts {
		pairName := alert.Pair.BaseSymbol
		if alert.Pair.QuoteSymbol != "" {
			pairName += "/" + alert.Pair.QuoteSymbol
		}

		message += fmt.Sprintf("%d\\. %s *%s* — %s \\(%s\\)\n",
			i+1, kindEmoji(alert.Kind), escapeMarkdownV2(pairName),
			escapeMarkdownV2(kindLabel(alert.Kind)), escapeMarkdownV2(alert.Pair.ChainID))
		message += fmt.Sprintf("   `%s`\n", escapeMarkdownV2(alert.Pair.PairAddress))
		message += fmt.Sprintf("   liq %s  vol24h %s  Δ24h %s\n",
			escapeMarkdownV2(fmt.Sprintf("$%.0f", alert.Pair.LiquidityUSD)),
			escapeMarkdownV2(fmt.Sprintf("$%.0f", alert.Pair.Volume24h)),
			escapeMarkdownV2(fmt.Sprintf("%.1f%%", alert.Pair.PriceChange24h)))
		if alert.Reason != "" {
			message += fmt.Sprintf("   _%s_\n", escapeMarkdownV2(alert.Reason))
		}
		message += "\n"
	}

	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
