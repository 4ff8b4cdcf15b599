package credentials

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

var columns = []string{"id", "user_id", "name", "secret", "image", "created_at", "updated_at"}

const (
	insertQ    = `(?s)^INSERT\s+INTO\s+credentials\s*\(user_id,\s*name,\s*secret,\s*image\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	countQ     = `(?s)^SELECT\s+count\(\*\)\s+FROM\s+credentials\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+\(\$2\s*=\s*''\s+OR\s+name\s+ILIKE.*\)\s*$`
	existsQ    = `(?s)^SELECT\s+EXISTS\s*\(.*lower\(name\)\s*=\s*lower\(\$2\)\s+AND\s+id\s*<>\s*\$3\s*\)\s*$`
	listQ      = `(?s)^SELECT\s+id,\s*user_id,\s*name,\s*secret,\s*image,\s*created_at,\s*updated_at\s+FROM\s+credentials\s+WHERE\s+user_id\s*=\s*\$1\s+AND.*ORDER\s+BY\s+updated_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4\s*$`
	listAllQ   = `(?s)^SELECT\s+id,.*FROM\s+credentials\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+id\s*$`
	byIDQ      = `(?s)^SELECT\s+id,.*FROM\s+credentials\s+WHERE\s+id\s*=\s*\$1\s*$`
	byOwnerQ   = `(?s)^SELECT\s+id,.*FROM\s+credentials\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`
	updateQ    = `(?s)^UPDATE\s+credentials\s+SET\s+name\s*=\s*\$1,\s*secret\s*=\s*\$2,\s*image\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$4\s+AND\s+user_id\s*=\s*\$5\s+RETURNING\s+created_at,\s*updated_at\s*$`
	deleteQ    = `(?s)^DELETE\s+FROM\s+credentials\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`
	dbErrorPat = `db error: .*boom`
)

func ptr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(insertQ).
		WithArgs(int64(1), "Bank", "cipher", "/uploads/a.png").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))
	mock.ExpectQuery(insertQ).
		WithArgs(int64(1), "Mail", "cipher", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	got, err := repo.Create(context.Background(), &models.Credential{UserID: 1, Name: "Bank", Secret: "cipher", Image: ptr("/uploads/a.png")})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)

	got, err = repo.Create(context.Background(), &models.Credential{UserID: 1, Name: "Mail", Secret: "cipher"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: nameConstraint})
	mock.ExpectQuery(insertQ).WillReturnError(errors.New("boom"))

	_, err := repo.Create(context.Background(), &models.Credential{UserID: 1, Name: "bank"})
	assert.ErrorIs(t, err, common.ErrDuplicateName)

	_, err = repo.Create(context.Background(), &models.Credential{UserID: 1, Name: "bank"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(dbErrorPat), err.Error())
}

func TestCount_EscapesSearch(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(countQ).WithArgs(int64(1), "").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(countQ).WithArgs(int64(1), `50\%\_off\\`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.Count(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.Count(context.Background(), 1, `50%_off\`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNameExists(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(existsQ).WithArgs(int64(1), "BANK", int64(0)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(existsQ).WithArgs(int64(1), "bank", int64(5)).WillReturnError(errors.New("boom"))

	ok, err := repo.NameExists(context.Background(), 1, "BANK", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.NameExists(context.Background(), 1, "bank", 5)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow(int64(2), int64(1), "Mail", "c2", nil, now, now).
		AddRow(int64(1), int64(1), "Bank", "c1", "/uploads/x.png", now, now)
	mock.ExpectQuery(listQ).WithArgs(int64(1), "ba", 10, 20).WillReturnRows(rows)

	got, err := repo.List(context.Background(), 1, "ba", 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Image)
	require.NotNil(t, got[1].Image)
	assert.Equal(t, "/uploads/x.png", *got[1].Image)
	assert.Equal(t, "c1", got[1].Secret)
}

func TestList_Empty(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(listQ).WillReturnRows(sqlmock.NewRows(columns))

	got, err := repo.List(context.Background(), 1, "", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_RowError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow(int64(1), int64(1), "Bank", "c1", nil, now, now).
		RowError(0, errors.New("boom"))
	mock.ExpectQuery(listQ).WillReturnRows(rows)

	_, err := repo.List(context.Background(), 1, "", 10, 0)
	require.Error(t, err)
	assert.Regexp(t, dbErrorPat, err.Error())
}

func TestListAll(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(listAllQ).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), int64(1), "Bank", "c1", nil, now, now))

	got, err := repo.ListAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetByID(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(byIDQ).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), int64(9), "Bank", "c1", nil, now, now))
	mock.ExpectQuery(byIDQ).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)

	_, err = repo.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByIDForOwner(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(byOwnerQ).WithArgs(int64(1), int64(9)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), int64(9), "Bank", "c1", nil, now, now))
	mock.ExpectQuery(byOwnerQ).WithArgs(int64(1), int64(8)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(byOwnerQ).WithArgs(int64(1), int64(7)).WillReturnError(errors.New("boom"))

	got, err := repo.GetByIDForOwner(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, "Bank", got.Name)

	_, err = repo.GetByIDForOwner(context.Background(), 1, 8)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.GetByIDForOwner(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Regexp(t, dbErrorPat, err.Error())
}

func TestUpdate(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(updateQ).WithArgs("Bank", "c2", nil, int64(1), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(updateQ).WithArgs("Bank", "c2", nil, int64(1), int64(8)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(updateQ).WithArgs("Mail", "c2", nil, int64(1), int64(9)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: nameConstraint})

	got, err := repo.Update(context.Background(), &models.Credential{ID: 1, UserID: 9, Name: "Bank", Secret: "c2"})
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(now))

	_, err = repo.Update(context.Background(), &models.Credential{ID: 1, UserID: 8, Name: "Bank", Secret: "c2"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.Update(context.Background(), &models.Credential{ID: 1, UserID: 9, Name: "Mail", Secret: "c2"})
	assert.ErrorIs(t, err, common.ErrDuplicateName)
}

func TestDelete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(deleteQ).WithArgs(int64(1), int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs(int64(1), int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteQ).WithArgs(int64(2), int64(9)).WillReturnError(errors.New("boom"))

	assert.NoError(t, repo.Delete(context.Background(), 1, 9))
	assert.ErrorIs(t, repo.Delete(context.Background(), 1, 8), common.ErrNotFound)

	err := repo.Delete(context.Background(), 2, 9)
	require.Error(t, err)
	assert.Regexp(t, dbErrorPat, err.Error())
}
