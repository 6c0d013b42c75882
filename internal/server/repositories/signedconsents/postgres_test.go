package signedconsents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

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

func TestRecord_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	email := "pat@example.com"
	q := regexp.MustCompile(`INSERT INTO signed_consents \(consent_flow_id, document_id, document, first_name, family_name, email, metadata\)`)

	mock.ExpectExec(q.String()).
		WithArgs("f1", "d1", []byte("%PDF-1.4"), "Pat", "Doe",
			sql.NullString{String: email, Valid: true}, []byte(`{"study":"a"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), &models.SignedConsent{
		ConsentFlowID: "f1",
		DocumentID:    "d1",
		Document:      []byte("%PDF-1.4"),
		FirstName:     "Pat",
		FamilyName:    "Doe",
		Email:         &email,
		Metadata:      map[string]string{"study": "a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecord_NoOptionalFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO signed_consents`)

	mock.ExpectExec(q.String()).
		WithArgs("f1", "d1", []byte("%PDF-1.4"), "Pat", "Doe", sql.NullString{}, []byte(nil)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), &models.SignedConsent{
		ConsentFlowID: "f1",
		DocumentID:    "d1",
		Document:      []byte("%PDF-1.4"),
		FirstName:     "Pat",
		FamilyName:    "Doe",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecord_DBExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO signed_consents`)
	mock.ExpectExec(q.String()).WillReturnError(errors.New("db is down"))

	err := repo.Record(context.Background(), &models.SignedConsent{ConsentFlowID: "f1"})
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByFlowID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM signed_consents\s+WHERE consent_flow_id = \$1`)

	rows := sqlmock.NewRows([]string{
		"consent_flow_id", "document_id", "document", "first_name", "family_name", "email", "metadata",
	}).AddRow("f1", "d1", []byte("%PDF-1.4"), "Pat", "Doe", "pat@example.com", []byte(`{"study":"a"}`))

	mock.ExpectQuery(q.String()).WithArgs("f1").WillReturnRows(rows)

	got, err := repo.FindByFlowID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DocumentID != "d1" || got.FirstName != "Pat" || got.FamilyName != "Doe" {
		t.Fatalf("unexpected consent: %+v", got)
	}
	if got.Email == nil || *got.Email != "pat@example.com" {
		t.Fatalf("unexpected email: %v", got.Email)
	}
	if got.Metadata["study"] != "a" {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}
}

func TestFindByDocumentID_NullOptionalColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM signed_consents\s+WHERE document_id = \$1`)

	rows := sqlmock.NewRows([]string{
		"consent_flow_id", "document_id", "document", "first_name", "family_name", "email", "metadata",
	}).AddRow("f1", "d1", []byte("%PDF-1.4"), "Pat", "Doe", nil, nil)

	mock.ExpectQuery(q.String()).WithArgs("d1").WillReturnRows(rows)

	got, err := repo.FindByDocumentID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != nil || got.Metadata != nil {
		t.Fatalf("expected nil optional fields, got %+v", got)
	}
}

func TestFindByFlowID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM signed_consents\s+WHERE consent_flow_id = \$1`)
	mock.ExpectQuery(q.String()).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByFlowID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindByFlowID_BadMetadata(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`SELECT .* FROM signed_consents\s+WHERE consent_flow_id = \$1`)

	rows := sqlmock.NewRows([]string{
		"consent_flow_id", "document_id", "document", "first_name", "family_name", "email", "metadata",
	}).AddRow("f1", "d1", []byte("%PDF-1.4"), "Pat", "Doe", nil, []byte(`{broken`))

	mock.ExpectQuery(q.String()).WithArgs("f1").WillReturnRows(rows)

	_, err := repo.FindByFlowID(context.Background(), "f1")
	if err == nil || !regexp.MustCompile(`failed to decode metadata`).MatchString(err.Error()) {
		t.Fatalf("expected metadata decode error, got %v", err)
	}
}
