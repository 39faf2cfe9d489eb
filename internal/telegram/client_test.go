package telegram

import (
	"strings"
	"testing"
	"time"

	"dexwatch/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatAlerts(t *testing.T) {
	detected := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	alerts := []models.Alert{
		{
			Kind: models.AlertFakeVolume,
			Pair: models.PairSnapshot{
				ID:             "ethereum:0xpair",
				ChainID:        "ethereum",
				PairAddress:    "0xpair",
				BaseSymbol:     "TKN",
				QuoteSymbol:    "WETH",
				LiquidityUSD:   500,
				Volume24h:      100000,
				PriceChange24h: 5,
				ObservedAt:     detected,
			},
			Reason:     "volume disproportionate to depth",
			DetectedAt: detected,
		},
		{
			Kind: models.AlertRugPull,
			Pair: models.PairSnapshot{
				ID:          "bsc:0xother",
				ChainID:     "bsc",
				PairAddress: "0xother",
				BaseSymbol:  "MEME",
				ObservedAt:  detected,
			},
			DetectedAt: detected,
		},
	}

	msg := formatAlerts(alerts)

	for _, want := range []string{
		"Suspicious pair activity",
		"TKN/WETH",
		"Fake volume",
		"Rug pull risk",
		"ethereum",
		"bsc",
		"0xother",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("formatted message missing %q:\n%s", want, msg)
		}
	}
	// Raw special characters must be escaped for MarkdownV2.
	if strings.Contains(msg, "1. ") {
		t.Error("unescaped period after index")
	}
}

func TestNewClientInvalidChatID(t *testing.T) {
	// The bot token validation happens first (network call), so an invalid
	// token also yields an error; either way NewClient must not succeed.
	if _, err := NewClient("", "not-a-number", 3, time.Second); err == nil {
		t.Error("Expected error for invalid client parameters, got nil")
	}
}
