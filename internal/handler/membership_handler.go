package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
	"github.com/noah-isme/membership-consent-api/pkg/response"
)

type membershipCalculator interface {
	Evaluate(ctx context.Context, userID, scopeID string) (*models.MemberStatus, error)
	ComputeStatusesForScope(ctx context.Context, userIDs []string, scopeID string) (map[string]models.MembershipStatus, error)
	EveryoneScope() string
}

// MembershipHandler exposes derived membership status.
type MembershipHandler struct {
	calculator membershipCalculator
	validator  *validator.Validate
}

// NewMembershipHandler builds the handler.
func NewMembershipHandler(calculator membershipCalculator, validate *validator.Validate) *MembershipHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MembershipHandler{calculator: calculator, validator: validate}
}

// Status godoc
// @Summary Membership status of a member
// @Tags Membership
// @Produce json
// @Param id path string true "User ID"
// @Param scope query string false "Scope id, defaults to everyone"
// @Success 200 {object} response.Envelope
// @Router /members/{id}/status [get]
func (h *MembershipHandler) Status(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	scope, err := scopeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.calculator.Evaluate(c.Request.Context(), userID, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// BatchStatus godoc
// @Summary Membership status of many members
// @Tags Membership
// @Accept json
// @Produce json
// @Param payload body dto.BatchStatusRequest true "User ids"
// @Success 200 {object} response.Envelope
// @Router /members/status [post]
func (h *MembershipHandler) BatchStatus(c *gin.Context) {
	var req dto.BatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch status payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch status payload"))
		return
	}
	scope := strings.ToLower(req.ScopeID)
	if scope == "" {
		scope = h.calculator.EveryoneScope()
	}
	statuses, err := h.calculator.ComputeStatusesForScope(c.Request.Context(), req.UserIDs, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, map[string]interface{}{"scope_id": scope})
}
