//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-service/internal/domain"
)

func TestPushEventRepository_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	events := NewPushEventRepository(testDB, logger)
	commits := NewCommitRepository(testDB, logger)
	ctx := context.Background()

	owner := seedUser(t, ctx)
	org := seedOrg(t, ctx, owner.ID)
	storedRepo := seedRepo(t, ctx, owner.ID, org.ID)

	commitIDs := make([]int64, 0, 2)
	for i := 0; i < 2; i++ {
		commit := enrichedCommit(storedRepo.ID, org.ID)
		commit.SHA = commit.SHA[:39] + string(rune('0'+i))

		created, err := commits.Upsert(ctx, commit, false)
		require.NoError(t, err)
		commitIDs = append(commitIDs, created.ID)
	}

	event := domain.PushEvent{
		RepositoryID:   storedRepo.ID,
		OrganizationID: org.ID,
		PusherID:       owner.ID,
		BeforeSHA:      "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b0",
		AfterSHA:       "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b1",
		Forced:         true,
		CompareURL:     "https://github.com/acme/api/compare/a1b0...a1b1",
		PushedAt:       time.Date(2024, 6, 1, 12, 31, 0, 0, time.UTC),
		CommitIDs:      commitIDs,
	}

	created, err := events.Create(ctx, event)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Forced)
	assert.Equal(t, commitIDs, created.CommitIDs)

	// The join rows preserve listing order.
	var links []struct {
		CommitID int64 `db:"commit_id"`
		Position int   `db:"position"`
	}
	require.NoError(t, testDB.Select(&links,
		"SELECT commit_id, position FROM push_event_commits WHERE push_event_id = $1 ORDER BY position",
		created.ID,
	))
	require.Len(t, links, 2)
	assert.Equal(t, commitIDs[0], links[0].CommitID)
	assert.Equal(t, 0, links[0].Position)
	assert.Equal(t, commitIDs[1], links[1].CommitID)
	assert.Equal(t, 1, links[1].Position)
}

func TestPushEventRepository_Create_NoCommits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	truncateTables(t, testDB)
	events := NewPushEventRepository(testDB, logger)
	ctx := context.Background()

	owner := seedUser(t, ctx)
	org := seedOrg(t, ctx, owner.ID)
	storedRepo := seedRepo(t, ctx, owner.ID, org.ID)

	// A branch deletion has no commits but is still recorded.
	created, err := events.Create(ctx, domain.PushEvent{
		RepositoryID:   storedRepo.ID,
		OrganizationID: org.ID,
		PusherID:       owner.ID,
		BeforeSHA:      "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b1",
		AfterSHA:       "0000000000000000000000000000000000000000",
		Deleted:        true,
		PushedAt:       time.Date(2024, 6, 1, 12, 31, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, created.Deleted)
	assert.Empty(t, created.CommitIDs)

	var count int
	require.NoError(t, testDB.Get(&count, "SELECT COUNT(*) FROM push_event_commits"))
	assert.Zero(t, count)
}
