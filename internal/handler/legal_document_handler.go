package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
	"github.com/noah-isme/membership-consent-api/pkg/response"
)

type legalDocumentService interface {
	List(ctx context.Context, query dto.LegalDocumentQuery) ([]models.LegalDocument, error)
	Get(ctx context.Context, id string) (*models.LegalDocument, error)
	Create(ctx context.Context, req dto.CreateLegalDocumentRequest) (*models.LegalDocument, error)
	Update(ctx context.Context, id string, req dto.UpdateLegalDocumentRequest) (*models.LegalDocument, error)
}

type documentSyncService interface {
	SyncAll(ctx context.Context) (*models.SyncReport, error)
	SyncDocument(ctx context.Context, id string) (*models.SyncResult, error)
	CheckForUpdates(ctx context.Context) ([]models.LegalDocument, error)
	GetRequiredVersions(ctx context.Context) ([]models.RequiredVersion, error)
	GetRequiredVersionsForScope(ctx context.Context, scopeID string) ([]models.RequiredVersion, error)
	GetVersionByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
}

// LegalDocumentHandler exposes document administration and sync endpoints.
type LegalDocumentHandler struct {
	documents legalDocumentService
	sync      documentSyncService
}

// NewLegalDocumentHandler builds the handler.
func NewLegalDocumentHandler(documents legalDocumentService, sync documentSyncService) *LegalDocumentHandler {
	return &LegalDocumentHandler{documents: documents, sync: sync}
}

// List godoc
// @Summary List legal documents
// @Tags LegalDocuments
// @Produce json
// @Param scope query string false "Scope id"
// @Param active query bool false "Only active documents"
// @Success 200 {object} response.Envelope
// @Router /legal-documents [get]
func (h *LegalDocumentHandler) List(c *gin.Context) {
	var query dto.LegalDocumentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	scope, err := scopeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query.ScopeID = scope
	docs, err := h.documents.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs)
}

// Get godoc
// @Summary Get legal document
// @Tags LegalDocuments
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /legal-documents/{id} [get]
func (h *LegalDocumentHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Create godoc
// @Summary Register legal document
// @Tags LegalDocuments
// @Accept json
// @Produce json
// @Param payload body dto.CreateLegalDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Router /legal-documents [post]
func (h *LegalDocumentHandler) Create(c *gin.Context) {
	var req dto.CreateLegalDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid legal document payload"))
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update legal document settings
// @Tags LegalDocuments
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateLegalDocumentRequest true "Document settings"
// @Success 200 {object} response.Envelope
// @Router /legal-documents/{id} [put]
func (h *LegalDocumentHandler) Update(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateLegalDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid legal document payload"))
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Versions godoc
// @Summary List document versions
// @Tags LegalDocuments
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /legal-documents/{id}/versions [get]
func (h *LegalDocumentHandler) Versions(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	versions, err := h.sync.ListVersions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions)
}

// GetVersion godoc
// @Summary Get document version
// @Tags LegalDocuments
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Router /document-versions/{id} [get]
func (h *LegalDocumentHandler) GetVersion(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	version, err := h.sync.GetVersionByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version)
}

// SyncAll godoc
// @Summary Sync every active document from the source
// @Tags LegalDocuments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /legal-documents/sync [post]
func (h *LegalDocumentHandler) SyncAll(c *gin.Context) {
	report, err := h.sync.SyncAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{
		"updated": report.Count(models.SyncOutcomeUpdated),
		"failed":  report.Count(models.SyncOutcomeFailed),
		"skipped": report.Count(models.SyncOutcomeSkipped),
	})
}

// SyncOne godoc
// @Summary Sync one document from the source
// @Tags LegalDocuments
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /legal-documents/{id}/sync [post]
func (h *LegalDocumentHandler) SyncOne(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.sync.SyncDocument(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CheckForUpdates godoc
// @Summary List documents changed at the source since the last sync
// @Tags LegalDocuments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /legal-documents/updates [get]
func (h *LegalDocumentHandler) CheckForUpdates(c *gin.Context) {
	docs, err := h.sync.CheckForUpdates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs)
}

// RequiredVersions godoc
// @Summary Current versions of required documents
// @Tags LegalDocuments
// @Produce json
// @Param scope query string false "Scope id, defaults to everyone"
// @Success 200 {object} response.Envelope
// @Router /legal-documents/required-versions [get]
func (h *LegalDocumentHandler) RequiredVersions(c *gin.Context) {
	scope, err := scopeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var versions []models.RequiredVersion
	if scope == "" {
		versions, err = h.sync.GetRequiredVersions(c.Request.Context())
	} else {
		versions, err = h.sync.GetRequiredVersionsForScope(c.Request.Context(), scope)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions)
}
