package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

type memoryLegalDocuments struct {
	docs map[string]models.LegalDocument
}

func (m *memoryLegalDocuments) Create(_ context.Context, doc *models.LegalDocument) error {
	doc.ID = "doc-" + doc.Name
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memoryLegalDocuments) UpdateSettings(_ context.Context, doc *models.LegalDocument) error {
	if _, ok := m.docs[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memoryLegalDocuments) GetByID(_ context.Context, id string) (*models.LegalDocument, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memoryLegalDocuments) List(_ context.Context, filter models.LegalDocumentFilter) ([]models.LegalDocument, error) {
	var out []models.LegalDocument
	for _, doc := range m.docs {
		if filter.ActiveOnly && !doc.IsActive {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func TestLegalDocumentServiceCreateAppliesDefaults(t *testing.T) {
	store := &memoryLegalDocuments{docs: map[string]models.LegalDocument{}}
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	require.NoError(t, cache.Set(context.Background(), RequiredVersionsKey(models.ScopeEveryone), []string{"stale"}, 0))
	svc := NewLegalDocumentService(store, cache, nil, nil, "")

	folder := " /Statutes/ "
	doc, err := svc.Create(context.Background(), dto.CreateLegalDocumentRequest{
		Name:            "Statutes",
		GracePeriodDays: 14,
		SourceFolder:    &folder,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeEveryone, doc.ScopeID)
	assert.True(t, doc.IsRequired)
	assert.True(t, doc.IsActive)
	assert.Equal(t, "Statutes", doc.Folder())
	assert.Empty(t, repo.items, "required versions cache is cleared")
}

func TestLegalDocumentServiceValidation(t *testing.T) {
	svc := NewLegalDocumentService(&memoryLegalDocuments{docs: map[string]models.LegalDocument{}}, nil, nil, nil, "")

	cases := []dto.CreateLegalDocumentRequest{
		{Name: "", GracePeriodDays: 7},
		{Name: "x", GracePeriodDays: 0},
		{Name: "x", GracePeriodDays: 366},
		{Name: "x", GracePeriodDays: 7, ScopeID: "team-a"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, appErrors.ErrValidation, "%+v", req)
	}
}

func TestLegalDocumentServiceUpdate(t *testing.T) {
	folder := "Privacy"
	store := &memoryLegalDocuments{docs: map[string]models.LegalDocument{
		"doc-1": {ID: "doc-1", Name: "Privacy", ScopeID: models.ScopeEveryone, IsRequired: true, IsActive: true, GracePeriodDays: 7, SourceFolder: &folder},
	}}
	svc := NewLegalDocumentService(store, nil, nil, nil, "")

	empty := ""
	doc, err := svc.Update(context.Background(), "doc-1", dto.UpdateLegalDocumentRequest{
		Name:            "Privacy Policy",
		IsRequired:      false,
		IsActive:        true,
		GracePeriodDays: 30,
		SourceFolder:    &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, "Privacy Policy", doc.Name)
	assert.False(t, doc.IsRequired)
	assert.Nil(t, doc.SourceFolder)
	assert.Equal(t, 30, store.docs["doc-1"].GracePeriodDays)

	_, err = svc.Update(context.Background(), "missing", dto.UpdateLegalDocumentRequest{Name: "x", GracePeriodDays: 7})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
