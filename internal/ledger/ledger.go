package ledger

import (
	"taskreward/internal/commission"
	"taskreward/internal/model"
)

// ============================================================================
// 账务状态迁移
// ============================================================================
//
// 【为什么单独成包？】
//
// hold_amount / withdrawal_balance / trial_balance 都是派生字段，
// 历史上靠各处 handler 各自更新，字段之间经常漂移，只能靠一批
// "修复接口"事后补账。现在把每一次会影响派生字段的状态迁移收敛成
// 一个纯函数，由 service 在同一个数据库事务里整体落库：
//
//   1. 负佣金事件        -> ApplyNegativeCommission
//   2. 充值审批 / 清债   -> ApplyDepositCredit
//   3. 达标清零体验金    -> ApplyTrialReset
//
// 修复接口保留（契约要求幂等），但内部复用同一套公式，
// 数据一致时自然落到"无需修复"的分支。
//
// ============================================================================

// 负佣金冻结公式：hold = 事前余额 + 损失金额
func negativeHold(priorBalance, loss int64) int64 {
	return priorBalance + loss
}

// ApplyNegativeCommission 负佣金事件
//
// 事前余额 B、损失 L：余额整体冻结进 hold（B+L），账面余额置为 -L 表示欠款，
// 当日佣金同步记负，任务开关关闭，直到充值清债。
// 返回本次冻结金额。
func ApplyNegativeCommission(u *model.User, loss int64) int64 {
	prior := u.AccountBalance
	hold := negativeHold(prior, loss)

	u.AccountBalance = -loss
	u.NegativeCommission = loss
	u.HoldAmount = hold
	u.WithdrawalBalance = hold
	u.CampaignCommission -= loss
	u.AllowTask = false
	return hold
}

// NegativeStateConsistent 负佣金冻结后的字段是否自洽
func NegativeStateConsistent(u *model.User) bool {
	if u.NegativeCommission <= 0 {
		return u.HoldAmount == 0 && u.WithdrawalBalance == 0
	}
	return u.AccountBalance == -u.NegativeCommission &&
		u.HoldAmount == u.WithdrawalBalance &&
		u.HoldAmount >= u.NegativeCommission
}

// RepairNegativeState 幂等修复负佣金冻结字段
//
// 数据自洽时不做任何修改，返回 false。
// 余额尚未转入冻结（漂移的典型形态）时按当前余额视作事前余额重新套公式；
// 冻结额被部分扣掉时先补回下限（hold 必须覆盖欠款），
// 再把 withdrawal_balance 与 hold_amount 对齐。
func RepairNegativeState(u *model.User) bool {
	if NegativeStateConsistent(u) {
		return false
	}
	if u.NegativeCommission <= 0 {
		// 无欠款却残留冻结字段，直接归零
		u.HoldAmount = 0
		u.WithdrawalBalance = 0
		return true
	}
	if u.AccountBalance != -u.NegativeCommission {
		ApplyNegativeCommission(u, u.NegativeCommission)
		// ApplyNegativeCommission 会再记一次当日负佣金，修复场景要回冲
		u.CampaignCommission += u.NegativeCommission
		return true
	}
	if u.HoldAmount < u.NegativeCommission {
		u.HoldAmount = u.NegativeCommission
	}
	u.WithdrawalBalance = u.HoldAmount
	return true
}

// ApplyDepositCredit 充值审批入账
//
// 充值先抵扣欠款；欠款清零后释放冻结金额回余额，
// 负佣金相关字段归零，任务开关恢复。返回是否发生了冻结释放。
func ApplyDepositCredit(u *model.User, amount int64) bool {
	u.AccountBalance += amount

	if u.NegativeCommission > 0 && u.AccountBalance >= 0 {
		u.AccountBalance += u.HoldAmount
		u.NegativeCommission = 0
		u.HoldAmount = 0
		u.WithdrawalBalance = 0
		u.AllowTask = true
		return true
	}
	return false
}

// PendingHoldRelease 欠款已被余额覆盖但冻结未释放（充值后漂移的形态）
func PendingHoldRelease(u *model.User) bool {
	return u.NegativeCommission > 0 && u.AccountBalance >= 0
}

// ReleaseHold 释放冻结（fix-after-deposit 的修复动作）
func ReleaseHold(u *model.User) {
	u.AccountBalance += u.HoldAmount
	u.NegativeCommission = 0
	u.HoldAmount = 0
	u.WithdrawalBalance = 0
	u.AllowTask = true
}

// TrialResetDue 是否应当清零体验金：
// 零充值用户首次达到 30 单任务量，且体验金尚未清零
func TrialResetDue(u *model.User) bool {
	return u.DepositCount == 0 &&
		u.CampaignsCompleted >= commission.TasksPerSet &&
		u.TrialBalance > 0
}

// ApplyTrialReset 清零体验金：余额一次性扣除固定体验金额度
// 幂等，不满足触发条件时返回 false
func ApplyTrialReset(u *model.User) bool {
	if !TrialResetDue(u) {
		return false
	}
	u.AccountBalance -= model.TrialBalanceAmount
	u.TrialBalance = 0
	return true
}

// ============================================================================
// 签到奖励
// ============================================================================

// 七天一轮的签到奖励表，第七天翻倍
var checkInBonusTable = []int64{10, 10, 15, 15, 20, 25, 50}

// CheckInBonus 按连续签到天数返回当日奖励（streak 从 1 开始）
func CheckInBonus(streak int) int64 {
	if streak < 1 {
		streak = 1
	}
	return checkInBonusTable[(streak-1)%len(checkInBonusTable)]
}
