package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 事件类型（payload 中的 event 字段）
const (
	EventTaskClaimed       = "task.claimed"
	EventCampaignCompleted = "campaign.completed"
	EventSetReset          = "set.reset"
	EventDepositApproved   = "deposit.approved"
	EventWithdrawalUpdated = "withdrawal.updated"
)

// OutboxMessage 事务性发件箱
// 账务事务内落库，由后台任务轮询投递到 Kafka，保证事件与账务变更同生共死
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"messageKey"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retryCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
