package repository

import (
	"context"
	"errors"

	"fitzone/internal/entity"
)

var (
	ErrVersionConflict   = errors.New("principal was modified concurrently")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrNotFound          = errors.New("principal not found")
)

// PrincipalRepository stores one kind of principal. Find methods return
// (nil, nil) when no record matches.
//
// Save replaces the whole record only when the stored version equals
// p.Version, then bumps p.Version. A stale write returns ErrVersionConflict.
// Create and Save report unique-key hits as ErrDuplicateEmail or
// ErrDuplicateUsername. Delete returns ErrNotFound when nothing matched.
type PrincipalRepository interface {
	Create(ctx context.Context, p *entity.Principal) error
	FindByID(ctx context.Context, id string) (*entity.Principal, error)
	FindByEmail(ctx context.Context, email string) (*entity.Principal, error)
	FindByUsername(ctx context.Context, username string) (*entity.Principal, error)
	Save(ctx context.Context, p *entity.Principal) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]entity.Principal, error)
	Ping(ctx context.Context) error
}
