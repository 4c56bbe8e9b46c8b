package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

type consentStore interface {
	Create(ctx context.Context, record *models.ConsentRecord) (bool, error)
	GetByUserAndVersion(ctx context.Context, userID, versionID string) (*models.ConsentRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error)
}

type consentVersionReader interface {
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
}

// ConsentService appends to the consent ledger. Records are never updated or removed.
type ConsentService struct {
	consents  consentStore
	versions  consentVersionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConsentService constructs the service.
func NewConsentService(consents consentStore, versions consentVersionReader, validate *validator.Validate, logger *zap.Logger) *ConsentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentService{consents: consents, versions: versions, validator: validate, logger: logger}
}

// RecordConsent stores the consent of a user to a version. Consenting twice
// to the same version returns the original record with created=false.
func (s *ConsentService) RecordConsent(ctx context.Context, req dto.RecordConsentRequest) (*models.ConsentRecord, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consent payload")
	}

	version, err := s.versions.GetByID(ctx, req.DocumentVersionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "document version not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document version")
	}

	record := &models.ConsentRecord{
		UserID:            req.UserID,
		DocumentVersionID: version.ID,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		ContentHash:       ContentHash(version.Content),
	}
	created, err := s.consents.Create(ctx, record)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record consent")
	}
	if !created {
		existing, err := s.consents.GetByUserAndVersion(ctx, req.UserID, version.ID)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing consent")
		}
		return existing, false, nil
	}

	s.logger.Info("consent recorded",
		zap.String("user_id", record.UserID),
		zap.String("document_version_id", record.DocumentVersionID),
		zap.String("content_hash", record.ContentHash))
	return record, true, nil
}

// ListUserConsents returns the consent history of a user, newest first.
func (s *ConsentService) ListUserConsents(ctx context.Context, userID string) ([]models.ConsentRecord, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	records, err := s.consents.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consents")
	}
	if records == nil {
		records = []models.ConsentRecord{}
	}
	return records, nil
}

// ContentHash fingerprints the legally binding text a member agreed to.
func ContentHash(content models.LocalizedContent) string {
	sum := sha256.Sum256([]byte(content.Canonical()))
	return hex.EncodeToString(sum[:])
}
