package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disable prepared statements completely
	}), &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// ConnectMongo retries until the server answers a ping or attempts run out.
func ConnectMongo(ctx context.Context, cfg StoreConfig) (*mongo.Database, error) {
	attempts := cfg.MongoRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; ; attempt++ {
		opts := options.Client().
			ApplyURI(cfg.MongoURL).
			SetRetryWrites(true).
			SetRetryReads(true)
		if cfg.MongoConnectTimeout > 0 {
			opts.SetConnectTimeout(cfg.MongoConnectTimeout).SetServerSelectionTimeout(cfg.MongoConnectTimeout)
		}
		client, err := mongo.Connect(opts)
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client.Database(cfg.MongoDatabase), nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err
		if attempt >= attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.MongoRetryInterval):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMongoUnreachable, lastErr)
}
