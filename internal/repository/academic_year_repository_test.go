package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAcademicYearRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestAcademicYearRepositoryExistsByYear(t *testing.T) {
	db, mock, cleanup := newAcademicYearRepoMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_years WHERE school_id = $1 AND year = $2 LIMIT 1")).
		WithArgs("school-1", 2026).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByYear(context.Background(), "school-1", 2026)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAcademicYearRepositoryActivate(t *testing.T) {
	db, mock, cleanup := newAcademicYearRepoMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = FALSE")).
		WithArgs("school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = TRUE")).
		WithArgs("year-1", "school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Activate(context.Background(), "school-1", "year-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearRepositoryActivateUnknownYear(t *testing.T) {
	db, mock, cleanup := newAcademicYearRepoMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = FALSE")).
		WithArgs("school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_active = TRUE")).
		WithArgs("year-missing", "school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Activate(context.Background(), "school-1", "year-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearRepositoryLock(t *testing.T) {
	db, mock, cleanup := newAcademicYearRepoMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_closed = TRUE")).
		WithArgs("year-1", "school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Lock(context.Background(), "school-1", "year-1")
	require.NoError(t, err)
}
