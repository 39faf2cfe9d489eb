package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dexwatch/internal/config"
	"dexwatch/internal/dexscreener"
	"dexwatch/internal/logger"
	"dexwatch/internal/rugcheck"
	"dexwatch/internal/scanner"
	"dexwatch/internal/storage"
	"dexwatch/internal/telegram"
	"dexwatch/internal/trade"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxPairs,
		cfg.Storage.MaxSnapshotsPerPair,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	fetcher := dexscreener.NewClient(
		cfg.DexScreener.APIURL,
		cfg.DexScreener.Timeout,
		cfg.DexScreener.MaxRetries,
	)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	scan := newScanner(cfg, store, fetcher, telegramClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing current pair evaluation...")
		cancel()
	}()

	if telegramClient != nil {
		var executor trade.Executor
		if cfg.Trading.Enabled {
			executor = trade.NewToxiSol(cfg.Trading.BotHandle, telegramClient)
			logger.Info("Trade relay enabled via @%s", cfg.Trading.BotHandle)
		}
		telegramClient.ListenForCommands(ctx, executor, store, cfg.DexScreener.Chains)
	}

	logger.Info("Starting scan service (interval: %v, chains: %v, min_liquidity: %.0f, cooldown: %v)",
		cfg.DexScreener.PollInterval,
		cfg.DexScreener.Chains,
		cfg.Filters.MinLiquidity,
		cfg.Monitor.Cooldown,
	)

	consecutiveFailures := 0
	handleCycleResult := func(err error) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			logger.Error("Scan cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	scan.Run(ctx, cfg.DexScreener.PollInterval, handleCycleResult)
	logger.Info("Service stopped")
}

func newScanner(cfg *config.Config, store *storage.Storage, fetcher *dexscreener.Client, telegramClient *telegram.Client) *scanner.Scanner {
	var notifier scanner.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}

	scan := scanner.New(store, fetcher, notifier, scanner.SettingsFromConfig(cfg))

	if cfg.RugCheck.Enabled {
		scan.SetVerifier(rugcheck.NewClient(cfg.RugCheck.APIURL, cfg.RugCheck.Timeout))
		logger.Info("RugCheck trust gate enabled")
	}

	if cfg.Monitor.Reload {
		path := *configPath
		scan.SetReload(func() (scanner.Settings, error) {
			fresh, err := config.Load(path)
			if err != nil {
				return scanner.Settings{}, err
			}
			if err := fresh.Validate(); err != nil {
				return scanner.Settings{}, err
			}
			return scanner.SettingsFromConfig(fresh), nil
		})
		logger.Info("Per-cycle settings reload enabled")
	}

	return scan
}
