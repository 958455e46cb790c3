package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByID(ctx context.Context, userID int) (*domain.User, error) {
	query := `
        SELECT user_id, balance
        FROM users
        WHERE user_id = $1
    `
	row := r.db.QueryRow(ctx, query, userID)

	var user domain.User
	err := row.Scan(&user.UserID, &user.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// UpdateBalance runs inside the caller's transaction when one is bound to ctx.
func (r *Repository) UpdateBalance(ctx context.Context, userID int, balance decimal.Decimal) error {
	query := `
        UPDATE users
        SET balance = $1
        WHERE user_id = $2
    `
	tag, err := r.db.Exec(ctx, query, balance, userID)
	if err != nil {
		zap.L().Error("can't update user balance", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("user balance not updated")
	}
	return nil
}
