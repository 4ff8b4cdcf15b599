package questions

import (
	"context"
	"database/sql"
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

func (r *PostgresRepository) ListByCredential(ctx context.Context, credentialID int64) ([]*models.SecurityQuestion, error) {
	query :=
		`SELECT id, credential_id, question, answer, created_at, updated_at FROM security_questions
		 WHERE credential_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

// ListByOwner returns the questions of every credential owned by userID,
// grouped by credential.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.SecurityQuestion, error) {
	query :=
		`SELECT q.id, q.credential_id, q.question, q.answer, q.created_at, q.updated_at
		 FROM security_questions q
		 JOIN credentials c ON c.id = q.credential_id
		 WHERE c.user_id = $1
		 ORDER BY q.credential_id, q.id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

func (r *PostgresRepository) CreateBatch(ctx context.Context, credentialID int64, qs []*models.SecurityQuestion) error {
	query :=
		`INSERT INTO security_questions (credential_id, question, answer)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at
		 `

	for _, q := range qs {
		q.CredentialID = credentialID
		err := r.db.QueryRowContext(ctx, query, credentialID, q.Question, q.Answer).
			Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) DeleteByCredential(ctx context.Context, credentialID int64) error {
	query :=
		`DELETE FROM security_questions
		 WHERE credential_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, credentialID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func scanAll(rows *sql.Rows) ([]*models.SecurityQuestion, error) {
	defer rows.Close()

	result := []*models.SecurityQuestion{}
	for rows.Next() {
		q := &models.SecurityQuestion{}
		if err := rows.Scan(&q.ID, &q.CredentialID, &q.Question, &q.Answer, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
