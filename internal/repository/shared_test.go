package repository

import (
	"context"
	"testing"
	"time"

	"fitzone/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrincipal(username, email string) *entity.Principal {
	return &entity.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
	}
}

// exercisePrincipalRepository runs the behavior every backend must share.
func exercisePrincipalRepository(t *testing.T, repo PrincipalRepository) {
	ctx := context.Background()

	alice := newPrincipal("alice", "alice@example.com")
	alice.Profile = entity.Profile{Gender: "female", Age: 29, HeightCM: 168, FitnessGoal: "endurance"}
	require.NoError(t, repo.Create(ctx, alice))

	err := repo.Create(ctx, newPrincipal("alice2", "alice@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	err = repo.Create(ctx, newPrincipal("alice", "alice.other@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = repo.FindByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	byName, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, alice.ID, byName.ID)
	assert.Equal(t, 29, byName.Profile.Age)
	assert.Equal(t, "endurance", byName.Profile.FitnessGoal)

	expires := time.Date(2025, 3, 1, 9, 10, 0, 0, time.UTC)
	loaded, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	loaded.IssueCode(entity.PurposeVerification, "483920", expires)
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, int64(1), loaded.Version)

	stale := alice.Clone()
	stale.IsVerified = true
	assert.ErrorIs(t, repo.Save(ctx, stale), ErrVersionConflict)

	current, err := repo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	code, at, ok := current.OutstandingCode(entity.PurposeVerification)
	require.True(t, ok)
	assert.Equal(t, "483920", code)
	assert.True(t, expires.Equal(at.UTC()))
	assert.False(t, current.IsVerified)
	assert.Equal(t, int64(1), current.Version)

	current.ClearCode(entity.PurposeVerification)
	current.IsVerified = true
	require.NoError(t, repo.Save(ctx, current))
	cleared, err := repo.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	_, _, ok = cleared.OutstandingCode(entity.PurposeVerification)
	assert.False(t, ok)
	assert.True(t, cleared.IsVerified)
	assert.Equal(t, int64(2), cleared.Version)

	assert.ErrorIs(t, repo.Save(ctx, newPrincipal("ghost", "ghost@example.com")), ErrVersionConflict)
	assert.NoError(t, repo.Ping(ctx))
}

func exerciseUniqueUpdateAndDelete(t *testing.T, repo PrincipalRepository) {
	ctx := context.Background()
	ben := newPrincipal("ben", "ben@example.com")
	require.NoError(t, repo.Create(ctx, ben))
	cara := newPrincipal("cara", "cara@example.com")
	require.NoError(t, repo.Create(ctx, cara))

	renamed, err := repo.FindByID(ctx, cara.ID)
	require.NoError(t, err)
	renamed.Username = "ben"
	assert.ErrorIs(t, repo.Save(ctx, renamed), ErrDuplicateUsername)

	renamed, err = repo.FindByID(ctx, cara.ID)
	require.NoError(t, err)
	assert.Equal(t, "cara", renamed.Username)
	renamed.Username = "cara.fit"
	require.NoError(t, repo.Save(ctx, renamed))

	require.NoError(t, repo.Delete(ctx, ben.ID))
	gone, err := repo.FindByID(ctx, ben.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.ErrorIs(t, repo.Delete(ctx, ben.ID), ErrNotFound)

	require.NoError(t, repo.Create(ctx, newPrincipal("ben", "ben@example.com")), "a deleted principal frees its email and username")
}

func exerciseListOrdering(t *testing.T, repo PrincipalRepository) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		p := newPrincipal(name, name+"@example.com")
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, p))
	}

	all, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Username)
	assert.Equal(t, "first", all[2].Username)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "second", page[0].Username)

	empty, err := repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
