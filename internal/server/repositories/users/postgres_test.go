package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*phone_number,\s*password_hash,\s*ip_address,\s*login_method\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+user_id,\s*created_at,\s*updated_at\s*$`
	selectQ = `(?s)^SELECT\s+user_id,\s*username,\s*email,\s*phone_number,\s*password_hash,\s*ip_address,\s*login_method,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+`
)

var userColumns = []string{"user_id", "username", "email", "phone_number", "password_hash", "ip_address", "login_method", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func newAlice() *models.User {
	ip := "10.0.0.1"
	return &models.User{
		Username:     "alice",
		Email:        "a@x.io",
		PhoneNumber:  "5551234",
		PasswordHash: "$2a$hash",
		IPAddress:    &ip,
		LoginMethod:  "email",
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "a@x.io", "5551234", "$2a$hash", "10.0.0.1", "email").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	got, err := repo.Create(context.Background(), newAlice())
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NilIP(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	u := newAlice()
	u.IPAddress = nil

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "a@x.io", "5551234", "$2a$hash", nil, "email").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	_, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
}

func TestCreate_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", common.ErrEmailExists},
		{"users_username_key", common.ErrUsernameExists},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(insertQ).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := repo.Create(context.Background(), newAlice())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), newAlice())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(selectQ+`email\s*=\s*\$1\s*$`).
		WithArgs("a@x.io").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(7), "alice", "a@x.io", "5551234", "$2a$hash", "10.0.0.1", "email", now, now))

	got, err := repo.GetByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "$2a$hash", got.PasswordHash)
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "10.0.0.1", *got.IPAddress)
}

func TestGetByUsername_NullIP(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(selectQ+`username\s*=\s*\$1\s*$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(7), "alice", "a@x.io", "5551234", "$2a$hash", nil, "email", now, now))

	got, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, got.IPAddress)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ+`user_id\s*=\s*\$1\s*$`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ+`user_id\s*=\s*\$1\s*$`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), 1)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
