package flows

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var recordQ = regexp.MustCompile(`INSERT INTO consent_flows .* ON CONFLICT \(consent_flow_id\)\s+DO UPDATE SET`)

func TestRecord_Insert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(recordQ.String()).
		WithArgs("f1", "study-a", "patient-1", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), &models.ConsentFlow{
		ConsentFlowID: "f1",
		ConsentID:     "study-a",
		ExternalRefID: "patient-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecord_UpsertWithTimestamps(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	signedAt := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	withdrawnAt := signedAt.Add(24 * time.Hour)

	mock.ExpectExec(recordQ.String()).
		WithArgs("f1", "study-a", "patient-1", &signedAt, &withdrawnAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), &models.ConsentFlow{
		ConsentFlowID: "f1",
		ConsentID:     "study-a",
		ExternalRefID: "patient-1",
		SignedAt:      &signedAt,
		WithdrawnAt:   &withdrawnAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecord_UniqueViolationIsFlowConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(recordQ.String()).
		WithArgs("f2", "study-a", "patient-1", nil, nil).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "consent_flows_active_key"})

	err := repo.Record(context.Background(), &models.ConsentFlow{
		ConsentFlowID: "f2",
		ConsentID:     "study-a",
		ExternalRefID: "patient-1",
	})
	if !errors.Is(err, common.ErrFlowConflict) {
		t.Fatalf("want ErrFlowConflict, got %v", err)
	}
}

func TestRecord_DBExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(recordQ.String()).
		WithArgs("f1", "study-a", "patient-1", nil, nil).
		WillReturnError(errors.New("db is down"))

	err := repo.Record(context.Background(), &models.ConsentFlow{
		ConsentFlowID: "f1",
		ConsentID:     "study-a",
		ExternalRefID: "patient-1",
	})
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	signedAt := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	q := regexp.MustCompile(`SELECT consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at\s+FROM consent_flows\s+WHERE consent_flow_id = \$1`)

	rows := sqlmock.NewRows([]string{"consent_flow_id", "consent_id", "external_ref_id", "signed_at", "withdrawn_at"}).
		AddRow("f1", "study-a", "patient-1", signedAt, nil)

	mock.ExpectQuery(q.String()).WithArgs("f1").WillReturnRows(rows)

	got, err := repo.FindByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ConsentFlowID != "f1" || got.ConsentID != "study-a" || got.ExternalRefID != "patient-1" {
		t.Fatalf("unexpected flow: %+v", got)
	}
	if got.SignedAt == nil || !got.SignedAt.Equal(signedAt) {
		t.Fatalf("unexpected signedAt: %v", got.SignedAt)
	}
	if got.WithdrawnAt != nil {
		t.Fatalf("expected nil withdrawnAt, got %v", got.WithdrawnAt)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM consent_flows\s+WHERE consent_flow_id = \$1`)
	mock.ExpectQuery(q.String()).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindActive_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM consent_flows\s+WHERE external_ref_id = \$1 AND consent_id = \$2 AND withdrawn_at IS NULL`)

	rows := sqlmock.NewRows([]string{"consent_flow_id", "consent_id", "external_ref_id", "signed_at", "withdrawn_at"}).
		AddRow("f1", "study-a", "patient-1", nil, nil)

	mock.ExpectQuery(q.String()).WithArgs("patient-1", "study-a").WillReturnRows(rows)

	got, err := repo.FindActive(context.Background(), "patient-1", "study-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ConsentFlowID != "f1" || got.SignedAt != nil {
		t.Fatalf("unexpected flow: %+v", got)
	}
}

func TestFindByExternalRefIDAndConsentID_MultipleRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	signedAt := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	withdrawnAt := signedAt.Add(time.Hour)

	q := regexp.MustCompile(`SELECT .* FROM consent_flows\s+WHERE external_ref_id = \$1 AND consent_id = \$2`)

	rows := sqlmock.NewRows([]string{"consent_flow_id", "consent_id", "external_ref_id", "signed_at", "withdrawn_at"}).
		AddRow("f1", "study-a", "patient-1", signedAt, withdrawnAt).
		AddRow("f2", "study-a", "patient-1", nil, nil)

	mock.ExpectQuery(q.String()).WithArgs("patient-1", "study-a").WillReturnRows(rows)

	got, err := repo.FindByExternalRefIDAndConsentID(context.Background(), "patient-1", "study-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].WithdrawnAt == nil || got[1].WithdrawnAt != nil {
		t.Fatalf("unexpected rows: %+v %+v", got[0], got[1])
	}
}

func TestFindByExternalRefID_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM consent_flows\s+WHERE external_ref_id = \$1`)
	mock.ExpectQuery(q.String()).WithArgs("patient-1").WillReturnError(errors.New("db err"))

	_, err := repo.FindByExternalRefID(context.Background(), "patient-1")
	if err == nil || !regexp.MustCompile(`failed to select consent flows: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}

func TestFindByExternalRefID_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM consent_flows\s+WHERE external_ref_id = \$1`)

	rows := sqlmock.NewRows([]string{"consent_flow_id", "consent_id", "external_ref_id", "signed_at", "withdrawn_at"}).
		AddRow("f1", "study-a", "patient-1", nil, nil).
		AddRow("f2", "study-b", "patient-1", nil, nil).
		RowError(1, errors.New("row-err"))

	mock.ExpectQuery(q.String()).WithArgs("patient-1").WillReturnRows(rows)

	_, err := repo.FindByExternalRefID(context.Background(), "patient-1")
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}
