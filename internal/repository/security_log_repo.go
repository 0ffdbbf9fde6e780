package repository

import (
	"context"
	"sync"

	"fitzone/internal/entity"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

type SecurityLogRepository interface {
	Log(ctx context.Context, log *entity.SecurityLog) error
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

func (r *securityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

type mongoSecurityLogRepository struct {
	coll *mongo.Collection
}

func NewMongoSecurityLogRepository(db *mongo.Database) SecurityLogRepository {
	return &mongoSecurityLogRepository{coll: db.Collection("security_logs")}
}

func (r *mongoSecurityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	_, err := r.coll.InsertOne(ctx, log)
	return err
}

// MemorySecurityLog keeps entries in memory. Entries is safe to call while
// other goroutines log.
type MemorySecurityLog struct {
	mu      sync.Mutex
	entries []entity.SecurityLog
}

func NewMemorySecurityLog() *MemorySecurityLog {
	return &MemorySecurityLog{}
}

func (r *MemorySecurityLog) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *MemorySecurityLog) Entries() []entity.SecurityLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.SecurityLog, len(r.entries))
	copy(out, r.entries)
	return out
}
