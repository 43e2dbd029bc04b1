package models

// Audit actions recorded for asset and account mutations.
const (
	AuditActionRegister    = "REGISTER"
	AuditActionCreateAsset = "CREATE_ASSET"
	AuditActionUpdateAsset = "UPDATE_ASSET"
	AuditActionDeleteAsset = "DELETE_ASSET"
)

// AuditLog records sensitive user operations for security and compliance.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `gorm:"type:uuid" json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
