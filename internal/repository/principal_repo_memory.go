package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fitzone/internal/entity"
)

type memoryPrincipalRepository struct {
	mu   sync.Mutex
	byID map[string]*entity.Principal
}

// NewMemoryPrincipalRepository keeps principals in process memory. It is
// used by STORE_DRIVER=memory and by tests.
func NewMemoryPrincipalRepository() PrincipalRepository {
	return &memoryPrincipalRepository{byID: make(map[string]*entity.Principal)}
}

func (r *memoryPrincipalRepository) Create(ctx context.Context, p *entity.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(p); err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *memoryPrincipalRepository) FindByID(ctx context.Context, id string) (*entity.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (r *memoryPrincipalRepository) FindByEmail(ctx context.Context, email string) (*entity.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Email == email {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryPrincipalRepository) FindByUsername(ctx context.Context, username string) (*entity.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Username == username {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryPrincipalRepository) Save(ctx context.Context, p *entity.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[p.ID]
	if !ok || current.Version != p.Version {
		return ErrVersionConflict
	}
	if err := r.checkUnique(p); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *memoryPrincipalRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// checkUnique must be called with r.mu held.
func (r *memoryPrincipalRepository) checkUnique(p *entity.Principal) error {
	for id, existing := range r.byID {
		if id == p.ID {
			continue
		}
		if existing.Email == p.Email {
			return ErrDuplicateEmail
		}
		if existing.Username == p.Username {
			return ErrDuplicateUsername
		}
	}
	return nil
}

func (r *memoryPrincipalRepository) List(ctx context.Context, limit, offset int) ([]entity.Principal, error) {
	r.mu.Lock()
	all := make([]entity.Principal, 0, len(r.byID))
	for _, p := range r.byID {
		all = append(all, *p.Clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(all) {
			return []entity.Principal{}, nil
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryPrincipalRepository) Ping(ctx context.Context) error {
	return nil
}
