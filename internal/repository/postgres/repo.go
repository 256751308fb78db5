package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/domain"
)

type RepoRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewRepoRepository(db *sqlx.DB, log *slog.Logger) *RepoRepository {
	return &RepoRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const repoColumns = "id, repo_id, name, full_name, private, owner_id, default_branch, organization_id, enabled_for_tasks, repo_created_at, repo_updated_at, created_at, updated_at"

func (rr *RepoRepository) Upsert(ctx context.Context, repo domain.Repository) (*domain.Repository, error) {
	const op = "internal.repository.postgres.RepoRepository.Upsert"
	log := rr.log.With(slog.String("op", op), slog.String("full_name", repo.FullName))

	query, args, err := rr.sq.Insert("repositories").
		Columns("repo_id", "name", "full_name", "private", "owner_id", "default_branch",
			"organization_id", "enabled_for_tasks", "repo_created_at", "repo_updated_at").
		Values(repo.RepoID, repo.Name, repo.FullName, repo.Private, repo.OwnerID, repo.DefaultBranch,
			repo.OrganizationID, repo.EnabledForTasks, repo.RepoCreatedAt, repo.RepoUpdatedAt).
		Suffix(`
        ON CONFLICT (repo_id) DO UPDATE SET
            name = EXCLUDED.name,
            full_name = EXCLUDED.full_name,
            private = EXCLUDED.private,
            owner_id = EXCLUDED.owner_id,
            default_branch = EXCLUDED.default_branch,
            organization_id = EXCLUDED.organization_id,
            repo_created_at = EXCLUDED.repo_created_at,
            repo_updated_at = EXCLUDED.repo_updated_at,
            updated_at = now()
        RETURNING ` + repoColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository upsert query: %w", err)
	}

	var upserted domain.Repository
	if err := rr.db.QueryRowxContext(ctx, query, args...).StructScan(&upserted); err != nil {
		return nil, fmt.Errorf("failed to execute repository upsert: %w", err)
	}

	log.Debug("repository upserted", slog.Int64("repository_id", upserted.ID))

	return &upserted, nil
}

func (rr *RepoRepository) GetByOrgAndName(ctx context.Context, orgID int64, name string) (*domain.Repository, error) {
	query, args, err := rr.sq.Select(repoColumns).
		From("repositories").
		Where(sq.Eq{"organization_id": orgID, "name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select repository query: %w", err)
	}

	var repo domain.Repository
	if err := rr.db.GetContext(ctx, &repo, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "repository", Name: name}
		}

		return nil, fmt.Errorf("failed to get repository by name: %w", err)
	}

	return &repo, nil
}

func (rr *RepoRepository) ListByOrganization(ctx context.Context, orgID int64) ([]domain.Repository, error) {
	query, args, err := rr.sq.Select(repoColumns).
		From("repositories").
		Where(sq.Eq{"organization_id": orgID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list repositories query: %w", err)
	}

	var repos []domain.Repository
	if err := rr.db.SelectContext(ctx, &repos, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	return repos, nil
}

func (rr *RepoRepository) SetTasksEnabled(ctx context.Context, providerRepoID int64, enabled bool) (*domain.Repository, error) {
	const op = "internal.repository.postgres.RepoRepository.SetTasksEnabled"
	log := rr.log.With(slog.String("op", op), slog.Int64("repo_id", providerRepoID))

	query, args, err := rr.sq.Update("repositories").
		Set("enabled_for_tasks", enabled).
		Where(sq.Eq{"repo_id": providerRepoID}).
		Suffix("RETURNING " + repoColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build toggle tasks query: %w", err)
	}

	var repo domain.Repository
	if err := rr.db.QueryRowxContext(ctx, query, args...).StructScan(&repo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: repository with repo id %d", apperrors.ErrNotFound, providerRepoID)
		}

		return nil, fmt.Errorf("failed to execute toggle tasks: %w", err)
	}

	log.Info("tasks toggled", slog.Bool("enabled", enabled))

	return &repo, nil
}
