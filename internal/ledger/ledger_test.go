package ledger

import (
	"testing"

	"taskreward/internal/model"

	"github.com/stretchr/testify/require"
)

func TestApplyNegativeCommission(t *testing.T) {
	u := &model.User{
		AccountBalance:     8000,
		CampaignCommission: 500,
		AllowTask:          true,
	}

	hold := ApplyNegativeCommission(u, 2000)

	// hold = 事前余额 + 损失
	require.Equal(t, int64(10000), hold)
	require.Equal(t, int64(-2000), u.AccountBalance)
	require.Equal(t, int64(2000), u.NegativeCommission)
	require.Equal(t, int64(10000), u.HoldAmount)
	require.Equal(t, int64(10000), u.WithdrawalBalance)
	require.Equal(t, int64(-1500), u.CampaignCommission)
	require.False(t, u.AllowTask)
	require.True(t, NegativeStateConsistent(u))
}

func TestApplyDepositCreditClearsDebt(t *testing.T) {
	u := &model.User{AccountBalance: 8000, AllowTask: true}
	ApplyNegativeCommission(u, 2000)

	// 不足以清债：只抵扣，冻结不动
	released := ApplyDepositCredit(u, 1500)
	require.False(t, released)
	require.Equal(t, int64(-500), u.AccountBalance)
	require.Equal(t, int64(2000), u.NegativeCommission)
	require.Equal(t, int64(10000), u.HoldAmount)
	require.False(t, u.AllowTask)

	// 补足欠款：冻结释放，余额 = 0 + hold
	released = ApplyDepositCredit(u, 500)
	require.True(t, released)
	require.Equal(t, int64(10000), u.AccountBalance)
	require.Zero(t, u.NegativeCommission)
	require.Zero(t, u.HoldAmount)
	require.Zero(t, u.WithdrawalBalance)
	require.True(t, u.AllowTask)
	require.True(t, NegativeStateConsistent(u))
}

func TestApplyDepositCreditRestoresPriorBalancePlusDeposit(t *testing.T) {
	// 事前余额 B、损失 L、一次性充值 D>=L：最终余额应为 B + D - L
	u := &model.User{AccountBalance: 8000}
	ApplyNegativeCommission(u, 2000)

	released := ApplyDepositCredit(u, 3000)
	require.True(t, released)
	require.Equal(t, int64(8000+3000-2000), u.AccountBalance)
}

func TestRepairNegativeStateIdempotent(t *testing.T) {
	u := &model.User{AccountBalance: 8000}
	ApplyNegativeCommission(u, 2000)

	// 自洽状态：修复是空操作
	require.False(t, RepairNegativeState(u))

	// 漂移形态一：余额未转入冻结
	u2 := &model.User{
		AccountBalance:     8000,
		NegativeCommission: 2000,
	}
	require.True(t, RepairNegativeState(u2))
	require.Equal(t, int64(-2000), u2.AccountBalance)
	require.Equal(t, int64(10000), u2.HoldAmount)
	require.Equal(t, int64(10000), u2.WithdrawalBalance)
	// 修复不应重复记当日负佣金
	require.Zero(t, u2.CampaignCommission)
	require.True(t, NegativeStateConsistent(u2))
	require.False(t, RepairNegativeState(u2))

	// 漂移形态二：withdrawal_balance 失联
	u3 := &model.User{
		AccountBalance:     -2000,
		NegativeCommission: 2000,
		HoldAmount:         10000,
		WithdrawalBalance:  0,
	}
	require.True(t, RepairNegativeState(u3))
	require.Equal(t, int64(10000), u3.WithdrawalBalance)
	require.False(t, RepairNegativeState(u3))

	// 漂移形态三：无欠款却残留冻结字段
	u4 := &model.User{
		AccountBalance:    5000,
		HoldAmount:        3000,
		WithdrawalBalance: 3000,
	}
	require.True(t, RepairNegativeState(u4))
	require.Zero(t, u4.HoldAmount)
	require.Zero(t, u4.WithdrawalBalance)
	require.Equal(t, int64(5000), u4.AccountBalance)
	require.False(t, RepairNegativeState(u4))

	// 漂移形态四：冻结额被部分扣掉，低于欠款下限
	u5 := &model.User{
		AccountBalance:     -2000,
		NegativeCommission: 2000,
		HoldAmount:         500,
		WithdrawalBalance:  500,
	}
	require.True(t, RepairNegativeState(u5))
	require.Equal(t, int64(2000), u5.HoldAmount)
	require.Equal(t, int64(2000), u5.WithdrawalBalance)
	require.True(t, NegativeStateConsistent(u5))
	require.False(t, RepairNegativeState(u5))
}

func TestPendingHoldReleaseAndReleaseHold(t *testing.T) {
	u := &model.User{AccountBalance: 8000}
	ApplyNegativeCommission(u, 2000)
	require.False(t, PendingHoldRelease(u))

	// 模拟充值入账落库但释放步骤丢失
	u.AccountBalance += 2000
	require.True(t, PendingHoldRelease(u))

	ReleaseHold(u)
	require.Equal(t, int64(10000), u.AccountBalance)
	require.Zero(t, u.NegativeCommission)
	require.Zero(t, u.HoldAmount)
	require.True(t, u.AllowTask)
	require.False(t, PendingHoldRelease(u))
}

func TestTrialReset(t *testing.T) {
	u := &model.User{
		AccountBalance:     11000,
		TrialBalance:       model.TrialBalanceAmount,
		CampaignsCompleted: 30,
		DepositCount:       0,
	}

	require.True(t, TrialResetDue(u))
	require.True(t, ApplyTrialReset(u))
	require.Equal(t, int64(1000), u.AccountBalance)
	require.Zero(t, u.TrialBalance)

	// 只清一次
	require.False(t, TrialResetDue(u))
	require.False(t, ApplyTrialReset(u))
	require.Equal(t, int64(1000), u.AccountBalance)
}

func TestTrialResetNotDue(t *testing.T) {
	// 已充值用户不触发
	deposited := &model.User{
		TrialBalance:       model.TrialBalanceAmount,
		CampaignsCompleted: 30,
		DepositCount:       1,
	}
	require.False(t, TrialResetDue(deposited))

	// 未满 30 单不触发
	early := &model.User{
		TrialBalance:       model.TrialBalanceAmount,
		CampaignsCompleted: 29,
	}
	require.False(t, TrialResetDue(early))
}

func TestCheckInBonus(t *testing.T) {
	want := []int64{10, 10, 15, 15, 20, 25, 50}
	for day, bonus := range want {
		require.Equal(t, bonus, CheckInBonus(day+1), "第 %d 天", day+1)
	}

	// 第八天回到第一天档位
	require.Equal(t, int64(10), CheckInBonus(8))
	require.Equal(t, int64(50), CheckInBonus(14))

	// 异常 streak 按第一天处理
	require.Equal(t, int64(10), CheckInBonus(0))
	require.Equal(t, int64(10), CheckInBonus(-3))
}
