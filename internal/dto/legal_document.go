package dto

// CreateLegalDocumentRequest defines the payload for registering a document.
type CreateLegalDocumentRequest struct {
	Name            string  `json:"name" validate:"required,max=256"`
	ScopeID         string  `json:"scopeId" validate:"omitempty,uuid"`
	IsRequired      *bool   `json:"isRequired"`
	IsActive        *bool   `json:"isActive"`
	GracePeriodDays int     `json:"gracePeriodDays" validate:"required,min=1,max=365"`
	SourceFolder    *string `json:"sourceFolder" validate:"omitempty,max=512"`
}

// UpdateLegalDocumentRequest defines the editable document settings. Versions
// are never edited through this payload.
type UpdateLegalDocumentRequest struct {
	Name            string  `json:"name" validate:"required,max=256"`
	ScopeID         string  `json:"scopeId" validate:"omitempty,uuid"`
	IsRequired      bool    `json:"isRequired"`
	IsActive        bool    `json:"isActive"`
	GracePeriodDays int     `json:"gracePeriodDays" validate:"required,min=1,max=365"`
	SourceFolder    *string `json:"sourceFolder" validate:"omitempty,max=512"`
}

// LegalDocumentQuery filters document listings.
type LegalDocumentQuery struct {
	ScopeID    string `form:"scope"`
	ActiveOnly bool   `form:"active"`
}
