package model

import (
	"time"
)

// ============================================================================
// 任务模板与用户任务实例
// ============================================================================

const (
	CampaignStatusActive   = "active"
	CampaignStatusInactive = "inactive"
	CampaignStatusExpired  = "expired"
)

// Campaign 任务模板表
// 平台运营配置的任务原型，用户任务实例（CustomerTask）由模板生成
type Campaign struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"type:varchar(128);not null" json:"title"`
	Description   string     `gorm:"type:varchar(512)" json:"description"`
	Platform      string     `gorm:"type:varchar(32)" json:"platform"` // 如 TikTok / Amazon
	BaseAmount    int64      `gorm:"not null;default:0" json:"baseAmount"` // 平台成本价
	MinCommission int64      `gorm:"not null;default:0" json:"minCommission"`
	MaxCommission int64      `gorm:"not null;default:0" json:"maxCommission"`
	Status        string     `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	HasGoldenEgg  bool       `gorm:"not null;default:false" json:"hasGoldenEgg"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	Requirements  string     `gorm:"type:varchar(512)" json:"requirements"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// ============================================================================
// 用户任务实例状态机
// ============================================================================

const (
	TaskStatusPending   = "pending"
	TaskStatusActive    = "active"
	TaskStatusClaimed   = "claimed"
	TaskStatusCompleted = "completed"
	TaskStatusExpired   = "expired"
	TaskStatusCancelled = "cancelled"
)

var ValidTaskTransitions = map[string][]string{
	TaskStatusPending: {TaskStatusActive, TaskStatusExpired, TaskStatusCancelled},
	TaskStatusActive:  {TaskStatusClaimed, TaskStatusExpired, TaskStatusCancelled},
	TaskStatusClaimed: {TaskStatusCompleted},
}

func CanTaskTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidTaskTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// CustomerTask 用户任务实例表
// 由任务分配模块按模板生成，领取流程只消费不创建
type CustomerTask struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID     int64     `gorm:"index;not null" json:"customerId"`
	TaskNumber     int       `gorm:"not null" json:"taskNumber"` // 当前任务组内的序号
	CampaignID     int64     `gorm:"index;not null" json:"campaignId"`
	TaskCommission int64     `gorm:"not null;default:0" json:"taskCommission"` // 完成后可得佣金
	TaskPrice      int64     `gorm:"not null;default:0" json:"taskPrice"`      // 领取时需要垫付的金额
	Status         string    `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (CustomerTask) TableName() string {
	return "customer_task"
}

// ============================================================================
// 任务领取记录
// ============================================================================

const (
	ClaimStatusClaimed   = "claimed"
	ClaimStatusCompleted = "completed"
)

// CampaignClaim 任务领取记录表
//
// 【关键点】唯一性设计：同一 (customer_id, task_id) 在当前任务组内只允许
// 一条领取记录。组重置时不删除历史记录，而是把 reset_set_number 打上新组号，
// 释放 (customer_id, task_id, 0) 这个"在役"槽位，同一任务在新组可再次领取。
type CampaignClaim struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID       int64      `gorm:"uniqueIndex:uk_claim_live;not null" json:"customerId"`
	TaskID           int64      `gorm:"uniqueIndex:uk_claim_live;not null" json:"taskId"`
	TaskNumber       int        `gorm:"not null" json:"taskNumber"`
	CommissionEarned int64      `gorm:"not null;default:0" json:"commissionEarned"`
	Status           string     `gorm:"type:varchar(16);not null;default:claimed" json:"status"`
	ResetSetNumber   int        `gorm:"uniqueIndex:uk_claim_live;not null;default:0" json:"resetSetNumber"` // 0 表示在役
	ResetAt          *time.Time `json:"resetAt"`
	ClaimedAt        time.Time  `gorm:"autoCreateTime" json:"claimedAt"`
}

func (CampaignClaim) TableName() string {
	return "campaign_claim"
}
