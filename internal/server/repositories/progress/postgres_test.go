package progress

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInit_Upserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+progress_records\b.*ON\s+CONFLICT\s*\(operation_id\)`

	mock.ExpectExec(q).
		WithArgs("op1", "rename", "tour-a", "running", 0, "starting").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Init(context.Background(), &models.ProgressRecord{
		OperationID: "op1",
		Type:        "rename",
		Target:      "tour-a",
		Status:      models.ProgressStatusRunning,
		Message:     "starting",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+progress_records\s+SET\s+percent=`).
		WithArgs("ghost", 50, "half way").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "ghost", 50, "half way")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestComplete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+progress_records\s+SET\s+status='completed',\s+percent=100`).
		WithArgs("op1", "done").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Complete(context.Background(), "op1", "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFail_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+progress_records\s+SET\s+status='failed'`).
		WithArgs("op1", "copy verification failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Fail(context.Background(), "op1", "copy verification failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"operation_id", "type", "target", "status", "percent", "message",
		"started_at", "updated_at", "finished_at",
	}).AddRow("op1", "rename", "tour-a", "running", 40, "copying batch 4/10", now, now, nil)

	mock.ExpectQuery(`(?s)SELECT\s+operation_id,.*FROM\s+progress_records`).
		WithArgs("op1").
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), "op1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Percent != 40 || rec.Status != models.ProgressStatusRunning {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FinishedAt != nil {
		t.Fatal("running record must have nil FinishedAt")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+operation_id,.*FROM\s+progress_records`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+progress_records\s+WHERE\s+updated_at\s*<`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2, got %d", n)
	}
}
