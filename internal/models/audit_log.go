package models

// AuditLog is an append-only record of a write a user made through the API.
// Changes holds the JSON object of submitted fields with secrets redacted.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:uuid;not null;index:idx_audit_logs_user_id" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null;index:idx_audit_logs_resource,priority:1" json:"resource_type"`
	ResourceID   string `gorm:"index:idx_audit_logs_resource,priority:2" json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
