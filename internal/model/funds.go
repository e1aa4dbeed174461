package model

import (
	"time"
)

// ============================================================================
// 充值
// ============================================================================

const (
	DepositStatusPending  = "pending"
	DepositStatusApproved = "approved"
	DepositStatusRejected = "rejected"
)

// Deposit 充值申请表
// 审批通过是 deposit_count 永久 +1、任务组规则升档的唯一触发点
type Deposit struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DepositNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"depositNo"`
	UserID       int64      `gorm:"index;not null" json:"userId"`
	MembershipID string     `gorm:"type:varchar(8);not null" json:"membershipId"`
	Amount       int64      `gorm:"not null" json:"amount"`
	AmountType   string     `gorm:"type:varchar(16);not null;default:BDT" json:"amountType"`
	Status       string     `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	ProcessedAt  *time.Time `json:"processedAt"`
	ProcessedBy  string     `gorm:"type:varchar(64)" json:"processedBy"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Deposit) TableName() string {
	return "deposit"
}

// ============================================================================
// 提现状态机
// ============================================================================

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

// completed / rejected 为终态，不再流转
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusRejected},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusRejected},
}

func CanWithdrawalTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidWithdrawalTransitions[currentStatus]
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

// Withdrawal 提现申请表
type Withdrawal struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawalNo"`
	CustomerID     int64      `gorm:"index;not null" json:"customerId"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Method         string     `gorm:"type:varchar(32);not null" json:"method"` // 如 bkash / nagad / bank
	AccountDetails string     `gorm:"type:varchar(256)" json:"accountDetails"`
	Status         string     `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	ProcessedAt    *time.Time `json:"processedAt"`
	ProcessedBy    string     `gorm:"type:varchar(64)" json:"processedBy"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Withdrawal) TableName() string {
	return "withdrawal"
}

// ============================================================================
// 冻结记录
// ============================================================================

const (
	HoldReasonNegativeCommission = "negative_commission"
	HoldReasonDepositHold        = "deposit_hold"
)

// HoldRecord 冻结记录表
// 同一用户同一时刻最多一条 is_active 记录，靠"先查再改或插入"保证
type HoldRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"userId"`
	HoldAmount int64     `gorm:"not null" json:"holdAmount"`
	Reason     string    `gorm:"type:varchar(32);not null" json:"reason"`
	IsActive   bool      `gorm:"index;not null;default:true" json:"isActive"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (HoldRecord) TableName() string {
	return "hold_record"
}
