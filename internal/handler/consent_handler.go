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

const maxUserAgentLength = 1024

type consentService interface {
	RecordConsent(ctx context.Context, req dto.RecordConsentRequest) (*models.ConsentRecord, bool, error)
	ListUserConsents(ctx context.Context, userID string) ([]models.ConsentRecord, error)
}

// ConsentHandler exposes the consent ledger.
type ConsentHandler struct {
	service consentService
}

// NewConsentHandler builds the handler.
func NewConsentHandler(service consentService) *ConsentHandler {
	return &ConsentHandler{service: service}
}

// List godoc
// @Summary Consent history of a member
// @Tags Consents
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /members/{id}/consents [get]
func (h *ConsentHandler) List(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.ListUserConsents(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// Record godoc
// @Summary Consent to a document version
// @Tags Consents
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.RecordConsentRequest true "Consent payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Already consented"
// @Router /members/{id}/consents [post]
func (h *ConsentHandler) Record(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RecordConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid consent payload"))
		return
	}
	req.UserID = userID
	req.IPAddress = c.ClientIP()
	req.UserAgent = truncateRunes(c.Request.UserAgent(), maxUserAgentLength)

	record, created, err := h.service.RecordConsent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, dto.RecordConsentResponse{Created: created, Consent: record})
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
