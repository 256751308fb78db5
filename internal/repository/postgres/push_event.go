package postgres

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/devtrackhq/devtrack-service/internal/domain"
)

type PushEventRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewPushEventRepository(db *sqlx.DB, log *slog.Logger) *PushEventRepository {
	return &PushEventRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const pushEventColumns = "id, repository_id, organization_id, pusher_id, before_sha, after_sha, created, deleted, forced, compare_url, pushed_at, created_at"

// Create stores the event row and its ordered commit references in one
// transaction so a half-written event never becomes visible.
func (pr *PushEventRepository) Create(ctx context.Context, event domain.PushEvent) (*domain.PushEvent, error) {
	const op = "internal.repository.postgres.PushEventRepository.Create"
	log := pr.log.With(slog.String("op", op), slog.String("after_sha", event.AfterSHA))

	tx, err := pr.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := pr.sq.Insert("push_events").
		Columns("repository_id", "organization_id", "pusher_id", "before_sha", "after_sha",
			"created", "deleted", "forced", "compare_url", "pushed_at").
		Values(event.RepositoryID, event.OrganizationID, event.PusherID, event.BeforeSHA, event.AfterSHA,
			event.Created, event.Deleted, event.Forced, event.CompareURL, event.PushedAt).
		Suffix("RETURNING " + pushEventColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build push event insert query: %w", err)
	}

	var created domain.PushEvent
	if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&created); err != nil {
		return nil, fmt.Errorf("failed to insert push event: %w", err)
	}

	if len(event.CommitIDs) > 0 {
		builder := pr.sq.Insert("push_event_commits").
			Columns("push_event_id", "commit_id", "position")
		for i, commitID := range event.CommitIDs {
			builder = builder.Values(created.ID, commitID, i)
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build push event commits query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert push event commits: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	created.CommitIDs = event.CommitIDs

	log.Debug("push event created",
		slog.Int64("push_event_id", created.ID),
		slog.Int("commits", len(event.CommitIDs)),
	)

	return &created, nil
}
