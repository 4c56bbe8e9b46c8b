package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
	"github.com/noah-isme/membership-consent-api/pkg/export"
	"github.com/noah-isme/membership-consent-api/pkg/response"
)

type complianceService interface {
	NonCompliantMembers(ctx context.Context) ([]models.NonCompliantMember, error)
	Report(ctx context.Context, format export.Format) ([]byte, error)
}

// ComplianceHandler exposes compliance reporting for the board.
type ComplianceHandler struct {
	service complianceService
}

// NewComplianceHandler builds the handler.
func NewComplianceHandler(service complianceService) *ComplianceHandler {
	return &ComplianceHandler{service: service}
}

// NonCompliant godoc
// @Summary Members whose required consent lapsed
// @Tags Compliance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /compliance/non-compliant [get]
func (h *ComplianceHandler) NonCompliant(c *gin.Context) {
	members, err := h.service.NonCompliantMembers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, map[string]interface{}{"total": len(members)})
}

// Report godoc
// @Summary Download the non-compliance report
// @Tags Compliance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /compliance/report [get]
func (h *ComplianceHandler) Report(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report format"))
		return
	}
	data, err := h.service.Report(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("non-compliant-%s.%s", time.Now().UTC().Format("20060102"), format)
	response.Attachment(c, filename, format.ContentType(), data)
}
