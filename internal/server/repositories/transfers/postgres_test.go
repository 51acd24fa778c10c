package transfers

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	created = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	expires = created.Add(time.Hour)
)

const upsertQuery = `(?s)^\s*INSERT\s+INTO\s+transfers\b.*ON\s+CONFLICT\s*\(id\)\s*DO\s+UPDATE\s+SET\b.*;\s*$`

func TestSave_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQuery).
		WithArgs("a-b-c-d", int64(42), created, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &models.Transfer{
		ID:        "a-b-c-d",
		Size:      42,
		CreatedAt: created,
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSave_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQuery).WillReturnError(errors.New("boom"))

	err := repo.Save(context.Background(), &models.Transfer{ID: "a-b-c-d", CreatedAt: created, ExpiresAt: expires})
	if err == nil || err.Error() != "db error: boom" {
		t.Fatalf("want db error, got %v", err)
	}
}

func TestSave_UnexpectedRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Save(context.Background(), &models.Transfer{ID: "a-b-c-d"}); err == nil {
		t.Fatal("expected error for zero rows affected")
	}
}

func TestSave_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewErrorResult(errors.New("ra")))

	if err := repo.Save(context.Background(), &models.Transfer{ID: "a-b-c-d"}); err == nil {
		t.Fatal("expected rows affected error")
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM transfers WHERE id=\$1$`).
		WithArgs("a-b-c-d").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "a-b-c-d"); err != nil {
		t.Fatalf("missing row must not be an error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM transfers`).WillReturnError(errors.New("boom"))

	if err := repo.Delete(context.Background(), "a-b-c-d"); err == nil {
		t.Fatal("expected error")
	}
}

func TestList_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "size", "created_at", "expires_at"}).
		AddRow("a-b-c-d", int64(1), created, expires).
		AddRow("e-f-g-h", int64(2), created, expires)
	mock.ExpectQuery(`^SELECT id, size, created_at, expires_at FROM transfers`).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a-b-c-d" || got[1].Size != 2 || !got[1].ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT`).WillReturnError(errors.New("boom"))

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestList_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "size", "created_at", "expires_at"}).
		AddRow("a-b-c-d", "not-a-number", created, expires)
	mock.ExpectQuery(`^SELECT`).WillReturnRows(rows)

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected scan error")
	}
}

func TestList_RowsError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "size", "created_at", "expires_at"}).
		AddRow("a-b-c-d", int64(1), created, expires).
		RowError(0, errors.New("row boom"))
	mock.ExpectQuery(`^SELECT`).WillReturnRows(rows)

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected rows error")
	}
}
