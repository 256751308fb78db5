package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/repository"
)

type CommitRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewCommitRepository(db *sqlx.DB, log *slog.Logger) *CommitRepository {
	return &CommitRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const commitColumns = "id, sha, commit_time, repository_id, organization_id, message, additions, deletions, changes, author_name, summaries, tasks, created_at, updated_at"

// commitRow mirrors the commits table; summaries and tasks live in jsonb
// columns and are converted to the domain slices on the way out.
type commitRow struct {
	ID             int64           `db:"id"`
	SHA            string          `db:"sha"`
	CommitTime     time.Time       `db:"commit_time"`
	RepositoryID   int64           `db:"repository_id"`
	OrganizationID int64           `db:"organization_id"`
	Message        string          `db:"message"`
	Additions      int             `db:"additions"`
	Deletions      int             `db:"deletions"`
	Changes        int             `db:"changes"`
	AuthorName     *string         `db:"author_name"`
	Summaries      json.RawMessage `db:"summaries"`
	Tasks          json.RawMessage `db:"tasks"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r commitRow) toDomain() (*domain.Commit, error) {
	commit := domain.Commit{
		ID:             r.ID,
		SHA:            r.SHA,
		CommitTime:     r.CommitTime,
		RepositoryID:   r.RepositoryID,
		OrganizationID: r.OrganizationID,
		Message:        r.Message,
		Additions:      r.Additions,
		Deletions:      r.Deletions,
		Changes:        r.Changes,
		AuthorName:     r.AuthorName,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if len(r.Summaries) > 0 {
		if err := json.Unmarshal(r.Summaries, &commit.Summaries); err != nil {
			return nil, fmt.Errorf("failed to decode commit summaries: %w", err)
		}
	}

	if len(r.Tasks) > 0 {
		if err := json.Unmarshal(r.Tasks, &commit.Tasks); err != nil {
			return nil, fmt.Errorf("failed to decode commit tasks: %w", err)
		}
	}

	return &commit, nil
}

func (cr *CommitRepository) Upsert(ctx context.Context, commit domain.Commit, refreshEnrichment bool) (*domain.Commit, error) {
	const op = "internal.repository.postgres.CommitRepository.Upsert"
	log := cr.log.With(slog.String("op", op), slog.String("sha", commit.SHA))

	summaries, err := json.Marshal(commit.Summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit summaries: %w", err)
	}

	tasks, err := json.Marshal(commit.Tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit tasks: %w", err)
	}

	// Stored enrichment wins on conflict unless the caller asks for a refresh;
	// re-delivered webhooks must not overwrite summaries that already exist.
	enrichmentSet := `
            summaries = COALESCE(commits.summaries, EXCLUDED.summaries),
            tasks = COALESCE(commits.tasks, EXCLUDED.tasks),`
	if refreshEnrichment {
		enrichmentSet = `
            summaries = EXCLUDED.summaries,
            tasks = EXCLUDED.tasks,`
	}

	query, args, err := cr.sq.Insert("commits").
		Columns("sha", "commit_time", "repository_id", "organization_id", "message",
			"additions", "deletions", "changes", "author_name", "summaries", "tasks").
		Values(commit.SHA, commit.CommitTime, commit.RepositoryID, commit.OrganizationID, commit.Message,
			commit.Additions, commit.Deletions, commit.Changes, commit.AuthorName, summaries, tasks).
		Suffix(`
        ON CONFLICT (sha) DO UPDATE SET
            commit_time = EXCLUDED.commit_time,
            message = EXCLUDED.message,
            additions = EXCLUDED.additions,
            deletions = EXCLUDED.deletions,
            changes = EXCLUDED.changes,
            author_name = COALESCE(EXCLUDED.author_name, commits.author_name),` +
			enrichmentSet + `
            updated_at = now()
        RETURNING ` + commitColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build commit upsert query: %w", err)
	}

	var row commitRow
	if err := cr.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		return nil, fmt.Errorf("failed to execute commit upsert: %w", err)
	}

	log.Debug("commit upserted", slog.Int64("commit_id", row.ID))

	return row.toDomain()
}

func (cr *CommitRepository) GetBySHA(ctx context.Context, sha string) (*domain.Commit, error) {
	query, args, err := cr.sq.Select(commitColumns).
		From("commits").
		Where(sq.Eq{"sha": sha}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select commit query: %w", err)
	}

	var row commitRow
	if err := cr.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: commit %s", apperrors.ErrNotFound, sha)
		}

		return nil, fmt.Errorf("failed to get commit by sha: %w", err)
	}

	return row.toDomain()
}

func (cr *CommitRepository) ListByRepository(ctx context.Context, repositoryID int64, filter repository.CommitFilter) ([]domain.Commit, error) {
	builder := cr.sq.Select(commitColumns).
		From("commits").
		Where(sq.Eq{"repository_id": repositoryID}).
		OrderBy("commit_time DESC")

	if filter.Start != nil {
		builder = builder.Where(sq.GtOrEq{"commit_time": *filter.Start})
	}
	if filter.End != nil {
		builder = builder.Where(sq.Lt{"commit_time": *filter.End})
	}

	if filter.Start == nil && filter.End == nil && filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		builder = builder.
			Limit(uint64(filter.PageSize)).
			Offset(uint64((page - 1) * filter.PageSize))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list commits query: %w", err)
	}

	var rows []commitRow
	if err := cr.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	commits := make([]domain.Commit, 0, len(rows))
	for _, row := range rows {
		commit, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		commits = append(commits, *commit)
	}

	return commits, nil
}

func (cr *CommitRepository) ListCommitDates(ctx context.Context, repositoryIDs []int64) ([]time.Time, error) {
	if len(repositoryIDs) == 0 {
		return nil, nil
	}

	query := `
        SELECT DISTINCT (commit_time AT TIME ZONE 'UTC')::date AS day
        FROM commits
        WHERE repository_id = ANY($1)
        ORDER BY day DESC`

	var dates []time.Time
	if err := cr.db.SelectContext(ctx, &dates, query, pq.Array(repositoryIDs)); err != nil {
		return nil, fmt.Errorf("failed to list commit dates: %w", err)
	}

	return dates, nil
}
