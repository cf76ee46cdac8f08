package app

import (
	"context"
	"log/slog"

	"wallet_go/internal/command"
	"wallet_go/internal/domain"
	"wallet_go/internal/infra"
	"wallet_go/internal/market"
	"wallet_go/internal/server"
	"wallet_go/internal/session"
	"wallet_go/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.AccountStore
	Journal *storage.Journal
	Market  *market.Client
	Stream  *market.Stream
	Server  *server.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, wires the stack and binds the listener.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	b.Store = storage.NewAccountStore(cfg.Storage.AccountsPath, logger)
	accounts, err := b.Store.Load()
	if err != nil {
		return err
	}
	dir := domain.NewDirectory(accounts)
	slog.Info("accounts loaded", slog.Int("count", dir.Len()))

	var journal domain.TradeRecorder
	if cfg.Storage.JournalPath != "" {
		j, err := storage.NewJournal(cfg.Storage.JournalPath)
		if err != nil {
			return err
		}
		b.Journal = j
		journal = j
		slog.Info("trade journal ready", slog.String("path", cfg.Storage.JournalPath))
	}

	b.Market = market.NewClient(cfg.Market.APIURL, cfg.Market.APIKey, cfg.Market.CacheTTLMin, logger)
	if cfg.Market.WSURL != "" {
		b.Stream = market.NewStream(cfg.Market.WSURL, b.Market.SetPrice)
	}

	sessions := session.NewRegistry(dir)
	exec := command.NewExecutor(logger, dir, sessions, b.Market, journal, b.Store)

	srv, err := server.New(cfg.Server.ListenAddr, cfg.Server.BufferSize,
		cfg.Storage.SavePeriodSec, logger, exec, b.Store)
	if err != nil {
		return err
	}
	b.Server = srv
	return nil
}

// Run drives the server until shutdown, then flushes persistence.
func (b *Bootstrap) Run(ctx context.Context) {
	b.Store.Start()
	if b.Stream != nil {
		b.Stream.Connect(ctx)
		defer b.Stream.Disconnect()
	}

	b.Server.Run(ctx)
	b.Store.Close()
}
