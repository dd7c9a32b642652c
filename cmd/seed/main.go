// Package main creates the record store indexes and upserts the default
// users, plus the demo certificates when -certs is given.
package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/atinyakov/CertTrack/internal/config"
	"github.com/atinyakov/CertTrack/internal/db"
	"github.com/atinyakov/CertTrack/internal/logger"
	"github.com/atinyakov/CertTrack/internal/password"
	"github.com/atinyakov/CertTrack/internal/repository"
	"go.uber.org/zap"
)

var withCertificates = flag.Bool("certs", false, "also upsert the demo certificates")

// errMemoryStore is returned for the memory driver, which is seeded by the
// server itself on every start.
var errMemoryStore = errors.New("the memory store cannot be seeded offline")

func main() {
	options := config.Parse()

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, options, *withCertificates, log.Log); err != nil {
		log.Log.Fatal("seed failed", zap.Error(err))
	}
	log.Log.Info("seed completed",
		zap.String("store", options.StoreDriver),
		zap.Bool("certificates", *withCertificates),
	)
}

func run(ctx context.Context, o *config.Options, certs bool, log *zap.Logger) error {
	hasher := password.NewBcrypt(0)

	switch o.StoreDriver {
	case config.StorePostgres:
		conn, err := db.InitPostgres(o.DatabaseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		return db.Seed(ctx, repository.NewPostgresStore(conn), hasher, certs, time.Now())

	case config.StoreMongo:
		store, err := repository.NewMongoStore(ctx, o.MongoURI, o.MongoDatabase, log)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close(context.Background()) }()
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		return db.Seed(ctx, store, hasher, certs, time.Now())

	default:
		return errMemoryStore
	}
}
