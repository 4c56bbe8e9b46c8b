package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

type legalDocumentStore interface {
	Create(ctx context.Context, doc *models.LegalDocument) error
	UpdateSettings(ctx context.Context, doc *models.LegalDocument) error
	GetByID(ctx context.Context, id string) (*models.LegalDocument, error)
	List(ctx context.Context, filter models.LegalDocumentFilter) ([]models.LegalDocument, error)
}

// LegalDocumentService manages document settings. Content and versions are
// owned by the sync engine and cannot be edited here.
type LegalDocumentService struct {
	store     legalDocumentStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	everyone  string
}

// NewLegalDocumentService constructs the service. Documents created without a
// scope are placed in everyoneScope.
func NewLegalDocumentService(store legalDocumentStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, everyoneScope string) *LegalDocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if everyoneScope == "" {
		everyoneScope = models.ScopeEveryone
	}
	return &LegalDocumentService{store: store, cache: cache, validator: validate, logger: logger, everyone: everyoneScope}
}

// List returns documents matching the query.
func (s *LegalDocumentService) List(ctx context.Context, query dto.LegalDocumentQuery) ([]models.LegalDocument, error) {
	docs, err := s.store.List(ctx, models.LegalDocumentFilter{ScopeID: query.ScopeID, ActiveOnly: query.ActiveOnly})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list legal documents")
	}
	if docs == nil {
		docs = []models.LegalDocument{}
	}
	return docs, nil
}

// Get returns one document.
func (s *LegalDocumentService) Get(ctx context.Context, id string) (*models.LegalDocument, error) {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "legal document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load legal document")
	}
	return doc, nil
}

// Create registers a document. It stays without versions until the first sync.
func (s *LegalDocumentService) Create(ctx context.Context, req dto.CreateLegalDocumentRequest) (*models.LegalDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid legal document payload")
	}

	doc := &models.LegalDocument{
		Name:            strings.TrimSpace(req.Name),
		ScopeID:         s.scopeOrDefault(req.ScopeID),
		IsRequired:      boolOrDefault(req.IsRequired, true),
		IsActive:        boolOrDefault(req.IsActive, true),
		GracePeriodDays: req.GracePeriodDays,
		SourceFolder:    normalizeFolder(req.SourceFolder),
	}
	if doc.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create legal document")
	}
	s.invalidate(ctx)
	s.logger.Info("legal document created", zap.String("document_id", doc.ID), zap.String("name", doc.Name))
	return doc, nil
}

// Update replaces the editable settings of a document.
func (s *LegalDocumentService) Update(ctx context.Context, id string, req dto.UpdateLegalDocumentRequest) (*models.LegalDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid legal document payload")
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Name = strings.TrimSpace(req.Name)
	if doc.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	doc.ScopeID = s.scopeOrDefault(req.ScopeID)
	doc.IsRequired = req.IsRequired
	doc.IsActive = req.IsActive
	doc.GracePeriodDays = req.GracePeriodDays
	doc.SourceFolder = normalizeFolder(req.SourceFolder)

	if err := s.store.UpdateSettings(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "legal document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update legal document")
	}
	s.invalidate(ctx)
	s.logger.Info("legal document updated", zap.String("document_id", doc.ID))
	return doc, nil
}

func (s *LegalDocumentService) scopeOrDefault(scopeID string) string {
	if strings.TrimSpace(scopeID) == "" {
		return s.everyone
	}
	return strings.ToLower(strings.TrimSpace(scopeID))
}

func (s *LegalDocumentService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateRequiredVersions(ctx); err != nil {
		s.logger.Warn("failed to invalidate required versions cache", zap.Error(err))
	}
}

func normalizeFolder(folder *string) *string {
	if folder == nil {
		return nil
	}
	trimmed := strings.Trim(strings.TrimSpace(*folder), "/")
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
