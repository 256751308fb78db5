//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
)

func TestWaitlistRepository_Add(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	repo := NewWaitlistRepository(testDB, logger)
	ctx := context.Background()

	entry, err := repo.Add(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", entry.Email)
	assert.False(t, entry.JoinedAt.IsZero())

	_, err = repo.Add(ctx, "new@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	var emailExistsErr *apperrors.EmailExistsError
	require.ErrorAs(t, err, &emailExistsErr)
	assert.Equal(t, "new@example.com", emailExistsErr.Email)

	var count int
	require.NoError(t, testDB.Get(&count, "SELECT COUNT(*) FROM waitlist"))
	assert.Equal(t, 1, count)
}
