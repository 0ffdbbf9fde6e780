package repository

import (
	"context"
	"errors"
	"time"

	"fitzone/internal/entity"

	"gorm.io/gorm"
)

type gormPrincipalRepository struct {
	db    *gorm.DB
	table string
}

// NewGormPrincipalRepository stores principals of one kind in table.
func NewGormPrincipalRepository(db *gorm.DB, table string) *gormPrincipalRepository {
	return &gormPrincipalRepository{db: db, table: table}
}

func (r *gormPrincipalRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).Table(r.table).AutoMigrate(&entity.Principal{})
}

func (r *gormPrincipalRepository) Create(ctx context.Context, p *entity.Principal) error {
	err := r.db.WithContext(ctx).Table(r.table).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.duplicateKind(ctx, p)
	}
	return err
}

func (r *gormPrincipalRepository) FindByID(ctx context.Context, id string) (*entity.Principal, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormPrincipalRepository) FindByEmail(ctx context.Context, email string) (*entity.Principal, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *gormPrincipalRepository) FindByUsername(ctx context.Context, username string) (*entity.Principal, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *gormPrincipalRepository) Save(ctx context.Context, p *entity.Principal) error {
	next := p.Clone()
	next.Version = p.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Table(r.table).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(next)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return r.duplicateKind(ctx, p)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *gormPrincipalRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Delete(&entity.Principal{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateKind tells which unique column p collided on. The translated
// gorm error drops the constraint name, so the email is looked up again.
func (r *gormPrincipalRepository) duplicateKind(ctx context.Context, p *entity.Principal) error {
	owner, err := r.FindByEmail(ctx, p.Email)
	if err != nil {
		return err
	}
	if owner != nil && owner.ID != p.ID {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}

func (r *gormPrincipalRepository) List(ctx context.Context, limit, offset int) ([]entity.Principal, error) {
	var principals []entity.Principal
	query := r.db.WithContext(ctx).Table(r.table).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&principals).Error; err != nil {
		return nil, err
	}
	return principals, nil
}

func (r *gormPrincipalRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormPrincipalRepository) first(ctx context.Context, query string, arg any) (*entity.Principal, error) {
	var p entity.Principal
	err := r.db.WithContext(ctx).
		Table(r.table).
		Where(query, arg).
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
