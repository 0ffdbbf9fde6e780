package config

import (
	"context"
	"fmt"
	"strings"

	"fitzone/internal/entity"
	"fitzone/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	usersCollection  = "users"
	adminsCollection = "admins"
)

// Stores holds one repository per principal kind plus the shared security
// log, all on the backend named by STORE_DRIVER.
type Stores struct {
	Users        repository.PrincipalRepository
	Admins       repository.PrincipalRepository
	SecurityLogs repository.SecurityLogRepository
	Close        func(context.Context) error
}

func OpenStores(ctx context.Context, cfg StoreConfig, log logrus.FieldLogger) (*Stores, error) {
	switch strings.ToLower(cfg.Driver) {
	case StoreMongo:
		db, err := ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		users := repository.NewMongoPrincipalRepository(db, usersCollection)
		admins := repository.NewMongoPrincipalRepository(db, adminsCollection)
		for _, repo := range []interface{ EnsureIndexes(context.Context) error }{users, admins} {
			if err := repo.EnsureIndexes(ctx); err != nil {
				return nil, fmt.Errorf("ensure indexes: %w", err)
			}
		}
		log.WithField("database", cfg.MongoDatabase).Info("connected to mongodb")
		return &Stores{
			Users:        users,
			Admins:       admins,
			SecurityLogs: repository.NewMongoSecurityLogRepository(db),
			Close:        db.Client().Disconnect,
		}, nil

	case StorePostgres:
		db, err := ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		users := repository.NewGormPrincipalRepository(db, usersCollection)
		admins := repository.NewGormPrincipalRepository(db, adminsCollection)
		for _, repo := range []interface{ Migrate(context.Context) error }{users, admins} {
			if err := repo.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate principals: %w", err)
			}
		}
		if err := db.WithContext(ctx).AutoMigrate(&entity.SecurityLog{}); err != nil {
			return nil, fmt.Errorf("migrate security logs: %w", err)
		}
		log.Info("connected to postgres")
		return &Stores{
			Users:        users,
			Admins:       admins,
			SecurityLogs: repository.NewSecurityLogRepository(db),
			Close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	case StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return &Stores{
			Users:        repository.NewMemoryPrincipalRepository(),
			Admins:       repository.NewMemoryPrincipalRepository(),
			SecurityLogs: repository.NewMemorySecurityLog(),
			Close:        func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, cfg.Driver)
}
