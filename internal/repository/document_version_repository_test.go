package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

var requiredVersionColumns = []string{"id", "legal_document_id", "version_number", "commit_sha", "content",
	"effective_from", "requires_reconsent", "changes_summary", "created_at", "document_name", "scope_id", "grace_period_days"}

func TestDocumentVersionRepositoryListRequired(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentVersionRepository(db)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	effective := at.AddDate(0, 0, -3)
	rows := sqlmock.NewRows(requiredVersionColumns).
		AddRow("ver-1", "doc-1", "v2.0", "sha-2", []byte(`{"es":"Hola","en":"Hello"}`), effective, true, "Updated", effective, "Statutes", models.ScopeEveryone, 7)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (v.legal_document_id)")).
		WithArgs(models.ScopeEveryone, at).
		WillReturnRows(rows)

	versions, err := repo.ListRequired(context.Background(), models.ScopeEveryone, at)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	v := versions[0]
	assert.Equal(t, "ver-1", v.ID)
	assert.Equal(t, "Statutes", v.DocumentName)
	assert.Equal(t, "Hola", v.Content.Canonical())
	assert.Equal(t, effective.AddDate(0, 0, 7), v.ConsentDeadline())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentVersionRepositoryListByDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentVersionRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(requiredVersionColumns[:9]).
		AddRow("ver-2", "doc-1", "v2.0", "sha-2", []byte(`{"es":"b"}`), now, true, nil, now).
		AddRow("ver-1", "doc-1", "v1.0", "sha-1", []byte(`{"es":"a"}`), now.Add(-time.Hour), false, "Initial version", now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE v.legal_document_id = $1")).
		WithArgs("doc-1").
		WillReturnRows(rows)

	versions, err := repo.ListByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Nil(t, versions[0].ChangesSummary)
	assert.Equal(t, "Initial version", *versions[1].ChangesSummary)
	require.NoError(t, mock.ExpectationsWereMet())
}
