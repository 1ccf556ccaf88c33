package domain

import (
	"context"
	"time"
)

// 审计事件类型
const (
	EventAllocationCreated   = "capital.allocation.created"
	EventAllocationUpdated   = "capital.allocation.updated"
	EventAllocationDeleted   = "capital.allocation.deleted"
	EventCapitalCallCreated  = "capital.call.created"
	EventCallStatusChanged   = "capital.call.status_changed"
	EventPaymentProcessed    = "capital.payment.processed"
	EventDistributionCreated = "capital.distribution.created"
)

// AuditEvent 审计事件
// 在金融变更成功提交后发出，发送失败只记日志，绝不回滚已提交的变更
type AuditEvent struct {
	EventType  string            `json:"event_type"`
	EntityIDs  map[string]string `json:"entity_ids"`
	Payload    any               `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewAuditEvent 创建审计事件，发生时间取当前时刻
func NewAuditEvent(eventType string, entityIDs map[string]string, payload any) AuditEvent {
	return AuditEvent{
		EventType:  eventType,
		EntityIDs:  entityIDs,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// EventRecorder 审计事件接收端接口，fire-and-forget 语义
type EventRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}
