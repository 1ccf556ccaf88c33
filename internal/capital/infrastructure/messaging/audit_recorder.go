// Package messaging 审计事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/mq"
)

// AuditRecorder 把领域审计事件发布到 Kafka
// fire-and-forget：发送失败由调用方记日志，不回滚已提交的金融变更
type AuditRecorder struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewAuditRecorder 创建审计事件发布器
func NewAuditRecorder(producer *mq.KafkaProducer, topic string) *AuditRecorder {
	if topic == "" {
		topic = "capital.audit"
	}
	return &AuditRecorder{producer: producer, topic: topic}
}

// Record 发布一条审计事件，以事件类型为分区键
func (r *AuditRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	return r.producer.SendMessage(ctx, r.topic, event.EventType, event)
}

var _ domain.EventRecorder = (*AuditRecorder)(nil)
