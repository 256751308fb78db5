package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devtrackhq/devtrack-service/internal/apperrors"
	"github.com/devtrackhq/devtrack-service/internal/domain"
)

type WaitlistRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewWaitlistRepository(db *sqlx.DB, log *slog.Logger) *WaitlistRepository {
	return &WaitlistRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (wr *WaitlistRepository) Add(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	const op = "internal.repository.postgres.WaitlistRepository.Add"
	log := wr.log.With(slog.String("op", op))

	query, args, err := wr.sq.Insert("waitlist").
		Columns("email").
		Values(email).
		Suffix("RETURNING id, email, joined_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build waitlist insert query: %w", err)
	}

	var entry domain.WaitlistEntry
	if err := wr.db.QueryRowxContext(ctx, query, args...).StructScan(&entry); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, &apperrors.EmailExistsError{Email: email}
		}

		return nil, fmt.Errorf("failed to insert waitlist entry: %w", err)
	}

	log.Info("waitlist entry added", slog.Int64("entry_id", entry.ID))

	return &entry, nil
}
