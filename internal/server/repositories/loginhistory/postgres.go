package loginhistory

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID int64, ipAddress string) error {
	query :=
		`INSERT INTO login_history (user_id, ip_address)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, ipAddress); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns at most limit records, newest first. The limit is used
// as given.
func (r *PostgresRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	query :=
		`SELECT id, user_id, logged_in_at, ip_address FROM login_history
		 WHERE user_id = $1
		 ORDER BY logged_in_at DESC, id DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.LoginRecord{}
	for rows.Next() {
		rec := &models.LoginRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.LoggedInAt, &rec.IPAddress); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
