package service

import (
	"context"
	"time"

	"fitzone/internal/entity"

	"golang.org/x/crypto/bcrypt"
)

type RecoveryConfig struct {
	CodeTTL       time.Duration
	LookupTimeout time.Duration
	SendTimeout   time.Duration
}

// MailSender delivers a one-time code. Implementations return an error for
// any failed delivery, including a rejected mailbox.
type MailSender interface {
	SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error
}

// DomainChecker reports whether the domain of email accepts mail. Lookup
// errors count as unreachable.
type DomainChecker interface {
	IsDomainReachable(ctx context.Context, email string) bool
}

// Cooldown limits how often a code may be dispatched for key. Reserve
// reports false while a previous reservation is still active. Release
// drops a reservation whose dispatch failed.
type Cooldown interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type AccessTokenIssuer interface {
	IssueAccessToken(principalID string, role entity.Role) (string, time.Duration, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
