package dto

import "github.com/noah-isme/membership-consent-api/internal/models"

// RecordConsentRequest captures a member accepting one document version.
// UserID, IPAddress and UserAgent come from the request context, not the body.
type RecordConsentRequest struct {
	UserID            string `json:"-" validate:"required"`
	DocumentVersionID string `json:"documentVersionId" validate:"required,uuid"`
	IPAddress         string `json:"-" validate:"omitempty,ip"`
	UserAgent         string `json:"-" validate:"max=1024"`
}

// RecordConsentResponse reports the stored record and whether this call created it.
type RecordConsentResponse struct {
	Created bool                  `json:"created"`
	Consent *models.ConsentRecord `json:"consent"`
}
