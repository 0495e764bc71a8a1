package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatvault/chatvault/internal/chat"
	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/db"
	"github.com/chatvault/chatvault/internal/drive"
	"github.com/chatvault/chatvault/internal/fetch"
	"github.com/chatvault/chatvault/internal/identity"
	syncer "github.com/chatvault/chatvault/internal/sync"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to read credentials file: %v", err)
	}

	resolver := identity.NewResolver(&db.IdentityCache{Pool: pool}, nil)

	clients := func(ctx context.Context, accountEmail string) (syncer.ChatAPI, syncer.AttachmentFetcher, error) {
		httpClient, err := chat.NewImpersonatedHTTPClient(ctx, credentialsJSON, accountEmail, cfg.Scopes)
		if err != nil {
			return nil, nil, err
		}

		chatClient, err := chat.NewClient(ctx, httpClient)
		if err != nil {
			return nil, nil, err
		}

		driveClient, err := drive.NewClient(ctx, httpClient)
		if err != nil {
			return nil, nil, err
		}

		fetcher := fetch.NewFetcher(chatClient, driveClient, httpClient, fetch.Options{
			StorageRoot:     cfg.StorageDir,
			MaxBytes:        cfg.MaxAttachmentBytes,
			DownloadTimeout: cfg.DownloadTimeout,
		})

		return chatClient, fetcher, nil
	}

	s := syncer.NewSyncer(pool, resolver, clients, cfg.AccountDelay)

	log.Printf("Starting sync of %d accounts (environment: %s)", len(cfg.Accounts), cfg.Environment)

	if err := s.Run(ctx, cfg.Accounts); err != nil {
		log.Fatalf("Sync aborted: %v", err)
	}

	log.Printf("Sync complete")
}
