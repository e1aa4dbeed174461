package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeCampaignEarning = "campaign_earning" // 任务佣金
	TransactionTypeWithdrawal      = "withdrawal"       // 提现
	TransactionTypeDeposit         = "deposit"          // 充值
	TransactionTypeDailyBonus      = "daily_bonus"      // 每日签到奖励
	TransactionTypeReferralBonus   = "referral_bonus"   // 推荐奖励
	TransactionTypeTrialReset      = "trial_reset"      // 体验金清零扣除
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// ============================================================================
// 账户流水实体
// ============================================================================

// Transaction 账户流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除（status 流转除外）—— 保证审计可追溯
// 2. 记录交易前后余额 —— 便于校验余额一致性
// 3. transaction_id 全局唯一，格式 TXN<毫秒时间戳><0-999>
type Transaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transactionId"`
	UserID        int64     `gorm:"index;not null" json:"userId"`
	Type          string    `gorm:"type:varchar(24);index;not null" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	BalanceBefore int64     `gorm:"not null" json:"balanceBefore"`
	BalanceAfter  int64     `gorm:"not null" json:"balanceAfter"`
	Status        string    `gorm:"type:varchar(16);not null;default:completed" json:"status"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transaction"
}
