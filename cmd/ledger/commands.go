package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	apikeyservice "github.com/tuncanbit/ledger/internal/application/apikeys"
	authservice "github.com/tuncanbit/ledger/internal/application/auth"
	depositservice "github.com/tuncanbit/ledger/internal/application/deposit"
	transferservice "github.com/tuncanbit/ledger/internal/application/transfer"
	walletservice "github.com/tuncanbit/ledger/internal/application/wallet"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/infrastructure/http/clients"
	"github.com/tuncanbit/ledger/internal/infrastructure/identity"
	"github.com/tuncanbit/ledger/internal/repositories/apikeyrepo"
	"github.com/tuncanbit/ledger/internal/repositories/authrepo"
	"github.com/tuncanbit/ledger/internal/repositories/transactionrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
	"github.com/tuncanbit/ledger/internal/server"
	"github.com/tuncanbit/ledger/internal/server/handlers"
	"github.com/tuncanbit/ledger/internal/server/websocket"
	"github.com/tuncanbit/ledger/pkg/config"
	"github.com/tuncanbit/ledger/pkg/logger"
)

func bootstrap(configPath string) (*config.Config, zerolog.Logger, *database.DBManager, error) {
	log := logger.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log = logger.NewWithConfig(cfg.Logger)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, db, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, websocket hub and deposit verifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer db.ShutDown()

			if cfg.Database.AutoMigrate {
				if err := db.RunMigrations(cmd.Context()); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
			}

			authRepo := authrepo.New(db, log)
			walletRepo := walletrepo.New(db, log)
			transactionRepo := transactionrepo.New(db, log)
			apiKeyRepo := apikeyrepo.New(db, log)

			wsHub := websocket.NewWsHub(log)
			paystackClient := clients.NewPaystackClient(cfg.Paystack, log)

			authSvc := authservice.NewAuthService(cfg.JWT, log, db, authRepo, walletRepo, apiKeyRepo)
			h := &handlers.Handlers{
				AuthSvc:     authSvc,
				APIKeySvc:   apikeyservice.New(apiKeyRepo, cfg.APIKeys, log),
				WalletSvc:   walletservice.New(walletRepo, transactionRepo, log),
				TransferSvc: transferservice.New(db, walletRepo, transactionRepo, wsHub, log),
				DepositSvc:  depositservice.New(db, walletRepo, transactionRepo, paystackClient, cfg.Paystack, cfg.Reconciler, wsHub, log),
				Identity:    identity.NewGoogleProvider(cfg.Google, log),
				DB:          db,
				WsHub:       wsHub,
				Logger:      log,
				Config:      cfg,
			}

			return server.New(cfg, h, log).Start()
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer db.ShutDown()

			if err := db.RunMigrations(cmd.Context()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}

func backfillCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-accounts",
		Short: "Assign account numbers to wallets that lack one",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer db.ShutDown()

			svc := walletservice.New(walletrepo.New(db, log), transactionrepo.New(db, log), log)
			n, err := svc.BackfillAccountNumbers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to backfill account numbers: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assigned %d account numbers\n", n)
			return nil
		},
	}
}
