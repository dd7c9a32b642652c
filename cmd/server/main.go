// Package main initializes and starts the CertTrack HTTP server,
// setting up configuration, logging, the record store, the Drive gateway,
// services and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/CertTrack/internal/config"
	"github.com/atinyakov/CertTrack/internal/db"
	"github.com/atinyakov/CertTrack/internal/drive"
	"github.com/atinyakov/CertTrack/internal/logger"
	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/atinyakov/CertTrack/internal/password"
	"github.com/atinyakov/CertTrack/internal/repository"
	"github.com/atinyakov/CertTrack/internal/server/handler/http"
	"github.com/atinyakov/CertTrack/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// recordStore is implemented by every repository backend.
type recordStore interface {
	service.UserRepository
	service.CertificateRepository
	service.FolderRoutingRepository
	db.Seeder
}

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx := context.Background()
	hasher := password.NewBcrypt(0)

	store, closeStore, err := openStore(ctx, options, hasher, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init record store", zap.String("driver", options.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	if err := db.SeedUsersIfEmpty(ctx, store, hasher, zapLogger); err != nil {
		zapLogger.Fatal("cannot seed users", zap.Error(err))
	}

	// Drive credentials are exchanged once at startup so a broken refresh
	// token shows up in the logs early; uploads retry on their own.
	creds := drive.NewCredentialStore(ctx,
		drive.NewOAuthConfig(options.Google.ClientID, options.Google.ClientSecret),
		options.Google.RefreshToken,
	)
	if _, err := creds.Token(); err != nil {
		zapLogger.Warn("drive token warm-up failed", zap.Error(err))
	} else {
		zapLogger.Info("drive token ready")
	}

	provider, err := drive.NewGoogleProvider(ctx, creds)
	if err != nil {
		zapLogger.Fatal("cannot create drive client", zap.Error(err))
	}
	gateway := drive.NewGateway(provider, creds, drive.Options{
		DefaultFolderID: options.Drive.ParentFolderID,
		Share: drive.Permission{
			Type:   options.Drive.ShareType,
			Role:   options.Drive.ShareRole,
			Domain: options.Drive.ShareDomain,
		},
	}, zapLogger)

	routing := models.FolderRouting{
		Report:      options.Drive.ReportFolderID,
		Format:      options.Drive.FormatFolderID,
		Certificate: options.Drive.CertificateFolder,
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(store, hasher, zapLogger)
	certService := service.NewCertificateService(store, store, store, gateway, service.FolderDefaults{
		Routing:        routing,
		ParentFolderID: options.Drive.ParentFolderID,
	}, zapLogger)
	folderService := service.NewFolderService(store, gateway, routing, zapLogger)

	// Create HTTP handlers.
	certHandler := &http.CertificateHandler{
		CertificateService: certService,
		Log:                zapLogger,
		MaxUploadBytes:     options.MaxUploadMB << 20,
	}
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	adminHandler := &http.AdminHandler{FolderService: folderService, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(certHandler, authHandler, adminHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Addr),
		zap.String("store", options.StoreDriver),
	)
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}

// openStore connects the configured backend. The in-memory store is seeded
// with the demo certificates as well as the default users.
func openStore(ctx context.Context, o *config.Options, h db.Hasher, log *zap.Logger) (recordStore, func(), error) {
	switch o.StoreDriver {
	case config.StorePostgres:
		conn, err := db.InitPostgres(o.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(conn), func() { _ = conn.Close() }, nil

	case config.StoreMemory:
		store := repository.NewMemoryStore()
		if err := db.Seed(ctx, store, h, true, time.Now()); err != nil {
			return nil, nil, err
		}
		log.Warn("using in-memory record store; data is lost on restart")
		return store, func() {}, nil

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := repository.NewMongoStore(connectCtx, o.MongoURI, o.MongoDatabase, log)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(connectCtx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, err
		}
		return store, func() { _ = store.Close(context.Background()) }, nil
	}
}
