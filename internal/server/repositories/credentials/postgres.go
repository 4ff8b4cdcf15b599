package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

const nameConstraint = "credentials_user_name_uidx"

const selectColumns = `id, user_id, name, secret, image, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {

	query :=
		`INSERT INTO credentials (user_id, name, secret, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, c.UserID, c.Name, c.Secret, nullString(c.Image)).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, nameConstraint) {
			return nil, common.ErrDuplicateName
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

// Count returns the number of credentials owned by userID whose name contains
// search (case-insensitive). An empty search counts everything.
func (r *PostgresRepository) Count(ctx context.Context, userID int64, search string) (int, error) {
	query :=
		`SELECT count(*) FROM credentials
		 WHERE user_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%' ESCAPE '\')
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, escapeLike(search)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) NameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM credentials
		   WHERE user_id = $1 AND lower(name) = lower($2) AND id <> $3
		 )
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, name, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID int64, search string, limit, offset int) ([]*models.Credential, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM credentials
		 WHERE user_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%' ESCAPE '\')
		 ORDER BY updated_at DESC, id DESC
		 LIMIT $3 OFFSET $4
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, escapeLike(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

func (r *PostgresRepository) ListAll(ctx context.Context, userID int64) ([]*models.Credential, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM credentials
		 WHERE user_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

// GetByID is not owner-scoped. It exists so mutations can tell a missing id
// from a foreign one; callers must never return its result to a non-owner.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM credentials
		 WHERE id = $1
		 `
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByIDForOwner(ctx context.Context, id, userID int64) (*models.Credential, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM credentials
		 WHERE id = $1 AND user_id = $2
		 `
	return scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query :=
		`UPDATE credentials SET name = $1, secret = $2, image = $3, updated_at = now()
		 WHERE id = $4 AND user_id = $5
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, c.Name, c.Secret, nullString(c.Image), c.ID, c.UserID).
		Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		if dbx.IsUniqueViolation(err, nameConstraint) {
			return nil, common.ErrDuplicateName
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Delete removes the credential; its security questions go with it through
// the foreign key cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID int64) error {
	query :=
		`DELETE FROM credentials
		 WHERE id = $1 AND user_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Credential, error) {
	c := &models.Credential{}
	var image sql.NullString
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Secret, &image, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if image.Valid {
		c.Image = &image.String
	}
	return c, nil
}

func scanOne(row *sql.Row) (*models.Credential, error) {
	c, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func scanAll(rows *sql.Rows) ([]*models.Credential, error) {
	defer rows.Close()

	result := []*models.Credential{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes search match literally inside an ILIKE pattern.
func escapeLike(search string) string {
	return likeEscaper.Replace(search)
}
