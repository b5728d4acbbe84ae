package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuletrack/academic-api/internal/models"
)

func newProgressionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestProgressionRepositoryExistsForStudentYear(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_progressions WHERE student_id = $1 AND academic_year_id = $2 LIMIT 1")).
		WithArgs("stu-1", "year-1").
		WillReturnRows(rows)

	exists, err := repo.ExistsForStudentYear(context.Background(), "stu-1", "year-1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionRepositoryHistoryByStudent(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	entry := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "academic_year_id", "class_level", "class_stream_id", "enrollment_type",
		"previous_academic_year_id", "entry_date", "exit_date", "exit_reason", "approval_reason", "school_id", "created_by", "created_at", "updated_at",
		"year", "stream_name"}).
		AddRow("prog-1", "stu-1", "year-1", models.LevelForm1, "stream-1", models.EnrollmentTypeNew,
			nil, entry, nil, models.ExitReasonNone, nil, "school-1", "user-1", entry, entry,
			2025, "North")
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_progressions sp")).
		WithArgs("stu-1", "school-1").
		WillReturnRows(rows)

	history, err := repo.HistoryByStudent(context.Background(), "school-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2025, history[0].Year)
	assert.True(t, history[0].Open())
}

func TestProgressionRepositoryClose(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_progressions SET exit_date = $3, exit_reason = $4")).
		WithArgs("prog-1", "school-1", sqlmock.AnyArg(), models.ExitReasonIncomplete, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Close(context.Background(), "school-1", "prog-1", models.ExitReasonIncomplete, time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionRepositoryCloseAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_progressions SET exit_date = $3, exit_reason = $4")).
		WithArgs("prog-1", "school-1", sqlmock.AnyArg(), models.ExitReasonIncomplete, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Close(context.Background(), "school-1", "prog-1", models.ExitReasonIncomplete, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestProgressionRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_progressions SET exit_date = $3, exit_reason = $4")).
		WithArgs("prog-old", "school-1", sqlmock.AnyArg(), models.ExitReasonProgressed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_progressions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET class_level = $3, class_stream_id = $4")).
		WithArgs("stu-1", "school-1", models.LevelForm3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stream := "stream-2"
	err := repo.Transition(context.Background(), TransitionParams{
		SchoolID:      "school-1",
		StudentID:     "stu-1",
		CloseRecordID: "prog-old",
		ExitReason:    models.ExitReasonProgressed,
		NewRecord: &models.StudentProgression{
			StudentID:      "stu-1",
			AcademicYearID: "year-2",
			ClassLevel:     models.LevelForm3,
			ClassStreamID:  &stream,
			EnrollmentType: models.EnrollmentTypeNew,
			SchoolID:       "school-1",
			CreatedBy:      "user-1",
		},
		StudentLevel:  models.LevelForm3,
		StudentStream: &stream,
		UpdatePointer: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionRepositoryTransitionSourceAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_progressions SET exit_date = $3, exit_reason = $4")).
		WithArgs("prog-old", "school-1", sqlmock.AnyArg(), models.ExitReasonProgressed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		SchoolID:      "school-1",
		StudentID:     "stu-1",
		CloseRecordID: "prog-old",
		ExitReason:    models.ExitReasonProgressed,
		NewRecord:     &models.StudentProgression{StudentID: "stu-1"},
		UpdatePointer: true,
	})
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionRepositoryListRepeaters(t *testing.T) {
	db, mock, cleanup := newProgressionRepoMock(t)
	defer cleanup()
	repo := NewProgressionRepository(db)

	entry := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "academic_year_id", "class_level", "class_stream_id", "enrollment_type",
		"previous_academic_year_id", "entry_date", "exit_date", "exit_reason", "approval_reason", "school_id", "created_by", "created_at", "updated_at",
		"student_name", "admission_number"}).
		AddRow("prog-2", "stu-2", "year-1", models.LevelForm2, "stream-1", models.EnrollmentTypeRepeat,
			nil, entry, nil, models.ExitReasonNone, nil, "school-1", "user-1", entry, entry,
			"Asha Mwangi", "ADM-041")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN students s ON s.id = sp.student_id")).
		WithArgs("stream-1", "year-1", models.EnrollmentTypeRepeat, "school-1").
		WillReturnRows(rows)

	repeaters, err := repo.ListRepeaters(context.Background(), "school-1", "stream-1", "year-1")
	require.NoError(t, err)
	require.Len(t, repeaters, 1)
	assert.Equal(t, "Asha Mwangi", repeaters[0].StudentName)
}
