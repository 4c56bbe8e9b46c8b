package dto

// MemberStatusQuery selects the scope a status is evaluated against.
type MemberStatusQuery struct {
	ScopeID string `form:"scope" validate:"omitempty,uuid"`
}

// BatchStatusRequest asks for the status of many members at once.
type BatchStatusRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=5000,dive,uuid"`
	ScopeID string   `json:"scopeId" validate:"omitempty,uuid"`
}

// NonCompliantQuery selects the compliance report format.
type NonCompliantQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
