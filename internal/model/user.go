package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// 用户账户常量
// ============================================================================

const (
	// 注册时的初始账户余额（含体验金）
	DefaultAccountBalance = int64(10000)
	// 体验金额度（不可提现，达标后一次性扣除）
	TrialBalanceAmount = int64(10000)
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

const (
	LevelBronze   = "Bronze"
	LevelSilver   = "Silver"
	LevelGold     = "Gold"
	LevelPlatinum = "Platinum"
)

// IntList 以 JSON 文本落库的整型列表（campaign_set 字段使用）
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = IntList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("无法解析 IntList 字段: %T", value)
	}
}

// Last 返回最后一个元素（即当前任务组编号），空列表返回 0
func (l IntList) Last() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1]
}

// Contains 判断列表中是否包含指定元素
func (l IntList) Contains(n int) bool {
	for _, v := range l {
		if v == n {
			return true
		}
	}
	return false
}

var ErrInvalidUserState = errors.New("用户账务字段状态不一致")

// User 用户账户表
// 记录用户的余额、体验金、冻结与负佣金字段，是整个平台的核心账本
//
// 【重要】账务字段约束：
// 1. account_balance 仅在负佣金流程中允许短暂为负，此时 hold_amount 与
//    withdrawal_balance 必须反映被冻结的金额
// 2. trial_balance 在零充值用户达到 30 单任务量时一次性清零，
//    同时从 account_balance 扣除等额体验金
// 3. campaign_set 只增不减，长度受充值档位规则的 max_campaign_set 约束
// 4. deposit_count > 0 后任务组规则永久切换，不可回退
type User struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username           string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password           string     `gorm:"type:varchar(128);not null" json:"-"` // bcrypt 哈希，绝不返回给客户端
	Gender             string     `gorm:"type:varchar(16)" json:"gender"`
	MembershipID       string     `gorm:"type:varchar(8);uniqueIndex;not null" json:"membershipId"` // 5位会员号
	ReferralCode       string     `gorm:"type:varchar(16);uniqueIndex;not null" json:"referralCode"`
	ReferredBy         string     `gorm:"type:varchar(16)" json:"referredBy"` // 注册时填写的推荐码
	Level              string     `gorm:"type:varchar(16);not null;default:Bronze" json:"level"`
	AccountBalance     int64      `gorm:"not null;default:0" json:"accountBalance"` // 账户余额（含体验金），负佣金流程中可为负
	TrialBalance       int64      `gorm:"not null;default:0" json:"trialBalance"`   // 体验金余额（不可提现）
	TotalEarnings      int64      `gorm:"not null;default:0" json:"totalEarnings"`  // 累计佣金收入
	CampaignsCompleted int        `gorm:"not null;default:0" json:"campaignsCompleted"`
	CampaignSet        IntList    `gorm:"type:varchar(64);not null;default:'[]'" json:"campaignSet"` // 已到达的任务组编号，如 [1,2]
	CampaignCommission int64      `gorm:"not null;default:0" json:"campaignCommission"`              // 当日累计佣金，负佣金任务可使其为负
	DailyCampaignCount int        `gorm:"not null;default:0" json:"dailyCampaignCount"`              // 当日已完成任务数
	DailyCountDate     string     `gorm:"type:varchar(10);not null;default:''" json:"dailyCountDate"` // 当日计数对应的 UTC 日期 YYYY-MM-DD
	DepositCount       int        `gorm:"not null;default:0" json:"depositCount"`
	TotalDeposited     int64      `gorm:"not null;default:0" json:"totalDeposited"` // 累计已审批充值总额，任务组规则按此分档
	HoldAmount         int64      `gorm:"not null;default:0" json:"holdAmount"`     // 冻结金额
	WithdrawalBalance  int64      `gorm:"not null;default:0" json:"withdrawalBalance"`
	NegativeCommission int64      `gorm:"not null;default:0" json:"negativeCommission"` // 未结清的损失金额（绝对值）
	AllowTask          bool       `gorm:"not null;default:true" json:"allowTask"`
	CampaignStatus     string     `gorm:"type:varchar(16);not null;default:inactive" json:"campaignStatus"`
	AccountStatus      string     `gorm:"type:varchar(16);not null;default:inactive" json:"accountStatus"` // 登录开关
	LastCheckIn        *time.Time `json:"lastCheckIn"`
	CheckInStreak      int        `gorm:"not null;default:0" json:"checkInStreak"`
	DaysClaimed        int        `gorm:"not null;default:0" json:"daysClaimed"`
	Version            int        `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "user"
}

// HasActiveHold 是否存在未释放的冻结
func (u *User) HasActiveHold() bool {
	return u.HoldAmount > 0 || u.NegativeCommission > 0
}

// TrialCleared 体验金是否已清零
func (u *User) TrialCleared() bool {
	return u.TrialBalance == 0
}
