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

type OrganizationRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewOrganizationRepository(db *sqlx.DB, log *slog.Logger) *OrganizationRepository {
	return &OrganizationRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const orgColumns = "id, org_id, installation_id, name, avatar_url, url, repos_url, description, owner_id, created_at, updated_at"

func (or *OrganizationRepository) Upsert(ctx context.Context, org domain.Organization) (*domain.Organization, error) {
	const op = "internal.repository.postgres.OrganizationRepository.Upsert"
	log := or.log.With(slog.String("op", op), slog.String("org_name", org.Name))

	query, args, err := or.sq.Insert("organizations").
		Columns("org_id", "installation_id", "name", "avatar_url", "url", "repos_url", "description", "owner_id").
		Values(org.OrgID, org.InstallationID, org.Name, org.AvatarURL, org.URL, org.ReposURL, org.Description, org.OwnerID).
		Suffix(`
        ON CONFLICT (org_id) DO UPDATE SET
            installation_id = EXCLUDED.installation_id,
            name = EXCLUDED.name,
            avatar_url = EXCLUDED.avatar_url,
            url = EXCLUDED.url,
            repos_url = EXCLUDED.repos_url,
            description = COALESCE(EXCLUDED.description, organizations.description),
            owner_id = EXCLUDED.owner_id,
            updated_at = now()
        RETURNING ` + orgColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build organization upsert query: %w", err)
	}

	var upserted domain.Organization
	if err := or.db.QueryRowxContext(ctx, query, args...).StructScan(&upserted); err != nil {
		return nil, fmt.Errorf("failed to execute organization upsert: %w", err)
	}

	log.Debug("organization upserted", slog.Int64("organization_id", upserted.ID))

	return &upserted, nil
}

func (or *OrganizationRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	query, args, err := or.sq.Select(orgColumns).
		From("organizations").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select organization query: %w", err)
	}

	var org domain.Organization
	if err := or.db.GetContext(ctx, &org, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "organization", Name: name}
		}

		return nil, fmt.Errorf("failed to get organization by name: %w", err)
	}

	return &org, nil
}

func (or *OrganizationRepository) AddMember(ctx context.Context, orgID, userID int64) error {
	query, args, err := or.sq.Insert("org_members").
		Columns("organization_id", "user_id").
		Values(orgID, userID).
		Suffix("ON CONFLICT (organization_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build add member query: %w", err)
	}

	if _, err := or.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute add member: %w", err)
	}

	return nil
}

func (or *OrganizationRepository) ListForMember(ctx context.Context, userID int64) ([]domain.Organization, error) {
	query, args, err := or.sq.Select(
		"o.id", "o.org_id", "o.installation_id", "o.name", "o.avatar_url",
		"o.url", "o.repos_url", "o.description", "o.owner_id", "o.created_at", "o.updated_at",
	).
		From("organizations o").
		Join("org_members m ON m.organization_id = o.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("o.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list organizations query: %w", err)
	}

	var orgs []domain.Organization
	if err := or.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list organizations for member: %w", err)
	}

	return orgs, nil
}
