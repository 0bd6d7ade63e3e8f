package services

import (
	"context"
	"encoding/json"
	"strings"

	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/store"
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach the audit table in clear text.
var sensitiveKeys = []string{"password", "token", "secret"}

type auditService struct {
	ledger *store.Ledger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(ledger *store.Ledger) AuditServicer {
	return &auditService{ledger: ledger}
}

// Log appends an audit entry. Failures are logged and swallowed so the
// audited write, which has already committed, still succeeds.
func (s *auditService) Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}

	if err := s.ledger.AuditLogs.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

// GetUserAuditLogs pages through a user's audit trail, newest first.
// An empty resourceType returns entries for every resource.
func (s *auditService) GetUserAuditLogs(ctx context.Context, userID, resourceType string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	filters := []store.Filter{store.Eq("user_id", userID)}
	if resourceType != "" {
		filters = append(filters, store.Eq("resource_type", resourceType))
	}
	order := []store.Sort{{Field: "created_at", Desc: true}, {Field: "id", Desc: true}}
	return findPage(ctx, s.ledger.AuditLogs, store.And(filters...), order, page)
}

func encodeChanges(action string, changes map[string]any) string {
	if changes == nil {
		return ""
	}
	clean := make(map[string]any, len(changes))
	for k, v := range changes {
		if isSensitive(k) {
			v = redacted
		}
		clean[k] = v
	}
	data, err := json.Marshal(clean)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
