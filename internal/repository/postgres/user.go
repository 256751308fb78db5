package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/domain"
)

type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewUserRepository(db *sqlx.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const userColumns = "id, github_id, login, name, email, avatar_url, profile_url, is_subscribed, subscription_expires_at, created_at, updated_at"

func (ur *UserRepository) Upsert(ctx context.Context, user domain.User) (*domain.User, error) {
	const op = "internal.repository.postgres.UserRepository.Upsert"
	log := ur.log.With(slog.String("op", op), slog.Int64("github_id", user.GithubID))

	query, args, err := ur.sq.Insert("users").
		Columns("github_id", "login", "name", "email", "avatar_url", "profile_url", "is_subscribed", "subscription_expires_at").
		Values(user.GithubID, user.Login, user.Name, user.Email, user.AvatarURL, user.ProfileURL, user.IsSubscribed, user.SubscriptionExpiresAt).
		Suffix(`
        ON CONFLICT (github_id) DO UPDATE SET
            login = EXCLUDED.login,
            name = EXCLUDED.name,
            email = COALESCE(EXCLUDED.email, users.email),
            avatar_url = EXCLUDED.avatar_url,
            profile_url = EXCLUDED.profile_url,
            updated_at = now()
        RETURNING ` + userColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user upsert query: %w", err)
	}

	var upserted domain.User
	if err := ur.db.QueryRowxContext(ctx, query, args...).StructScan(&upserted); err != nil {
		return nil, fmt.Errorf("failed to execute user upsert: %w", err)
	}

	log.Debug("user upserted", slog.Int64("user_id", upserted.ID))

	return &upserted, nil
}

func (ur *UserRepository) GetByGithubID(ctx context.Context, githubID int64) (*domain.User, error) {
	query, args, err := ur.sq.Select(userColumns).
		From("users").
		Where(sq.Eq{"github_id": githubID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select user query: %w", err)
	}

	var user domain.User
	if err := ur.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user with github id %d", apperrors.ErrNotFound, githubID)
		}

		return nil, fmt.Errorf("failed to get user by github id: %w", err)
	}

	return &user, nil
}

func (ur *UserRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	const op = "internal.repository.postgres.UserRepository.ExpireSubscriptions"
	log := ur.log.With(slog.String("op", op))

	query, args, err := ur.sq.Update("users").
		Set("is_subscribed", false).
		Set("updated_at", now).
		Where(sq.Eq{"is_subscribed": true}).
		Where(sq.Lt{"subscription_expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build expire subscriptions query: %w", err)
	}

	result, err := ur.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute expire subscriptions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired subscriptions: %w", err)
	}

	if affected > 0 {
		log.Info("expired subscriptions", slog.Int64("count", affected))
	}

	return affected, nil
}
