package service

import (
	"context"
	"testing"

	"taskreward/internal/model"
	"taskreward/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestResetTaskSetProgresses(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	ctx := context.Background()

	// 零充值用户完成第一组 30 单
	user := seedUser(t, db, &model.User{
		AccountBalance:     5000,
		CampaignsCompleted: 30,
		CampaignSet:        model.IntList{1},
	})
	// 一条在役领取记录
	require.NoError(t, db.Create(&model.CampaignClaim{
		CustomerID: user.ID,
		TaskID:     7,
		TaskNumber: 1,
		Status:     model.ClaimStatusCompleted,
	}).Error)

	result, err := svc.ResetTaskSet(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.NewSetNumber)
	require.Equal(t, 2, result.TotalSets)
	require.Equal(t, 30, result.TasksCompleted)
	require.True(t, result.CanWithdraw)

	reloaded := getUser(t, db, user.ID)
	require.Equal(t, model.IntList{1, 2}, reloaded.CampaignSet)

	// 在役记录被打上新组号，(customer, task, 0) 槽位释放
	var claim model.CampaignClaim
	require.NoError(t, db.Where("customer_id = ?", user.ID).First(&claim).Error)
	require.Equal(t, 2, claim.ResetSetNumber)
	require.NotNil(t, claim.ResetAt)

	// 立即再次重置：第二组还没完成任何任务
	_, err = svc.ResetTaskSet(ctx, user.ID)
	require.ErrorIs(t, err, ErrResetNotReady)
}

func TestResetTaskSetNotReady(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())

	user := seedUser(t, db, &model.User{CampaignsCompleted: 29, CampaignSet: model.IntList{1}})

	_, err := svc.ResetTaskSet(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrResetNotReady)
}

func TestResetTaskSetMaxSetsReached(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())

	// 零充值用户到第二组封顶
	user := seedUser(t, db, &model.User{CampaignsCompleted: 60, CampaignSet: model.IntList{1, 2}})
	_, err := svc.ResetTaskSet(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrMaxSetsReached)

	// 充值后档位放开到三组，同样的状态可以继续
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"deposit_count": 1, "total_deposited": 500}).Error)

	result, err := svc.ResetTaskSet(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 3, result.NewSetNumber)
}

func TestResetTaskSetUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())

	_, err := svc.ResetTaskSet(context.Background(), 404)
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

// ============================================================
// 修复接口
// ============================================================

func TestFixNegativeBalance(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	fundsRepo := repository.NewFundsRepository(db)
	ctx := context.Background()

	// 漂移形态：记了欠款但余额没有转入冻结
	user := seedUser(t, db, &model.User{
		AccountBalance:     8000,
		NegativeCommission: 2000,
	})

	result, err := svc.FixNegativeBalance(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, int64(-2000), result.AccountBalance)
	require.Equal(t, int64(10000), result.HoldAmount)
	require.Equal(t, int64(10000), result.WithdrawalBalance)

	hold, err := fundsRepo.GetActiveHold(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, hold)
	require.Equal(t, int64(10000), hold.HoldAmount)

	// 幂等：一致后重复调用不再改动
	result, err = svc.FixNegativeBalance(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, result.Changed)
}

func TestFixNegativeBalanceRestoresHoldFloor(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	ctx := context.Background()

	// 冻结额被部分扣掉，低于欠款下限
	user := seedUser(t, db, &model.User{
		AccountBalance:     -2000,
		NegativeCommission: 2000,
		HoldAmount:         500,
		WithdrawalBalance:  500,
	})

	result, err := svc.FixNegativeBalance(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, int64(-2000), result.AccountBalance)
	require.Equal(t, int64(2000), result.HoldAmount)
	require.Equal(t, int64(2000), result.WithdrawalBalance)

	// 修复后自洽，重复调用落到"无需修复"
	result, err = svc.FixNegativeBalance(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, result.Changed)
}

func TestFixNegativeBalanceClearsResidualHold(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())

	// 无欠款却残留冻结字段
	user := seedUser(t, db, &model.User{
		AccountBalance:    5000,
		HoldAmount:        3000,
		WithdrawalBalance: 3000,
	})

	result, err := svc.FixNegativeBalance(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Zero(t, result.HoldAmount)
	require.Zero(t, result.WithdrawalBalance)
	require.Equal(t, int64(5000), result.AccountBalance)
}

func TestFixHoldAlignsToHoldRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	fundsRepo := repository.NewFundsRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, &model.User{AccountBalance: -2000, NegativeCommission: 2000})
	require.NoError(t, fundsRepo.UpsertHold(ctx, nil, user.ID, 10000, model.HoldReasonNegativeCommission))

	result, err := svc.FixHold(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, int64(10000), result.HoldAmount)
	require.Equal(t, int64(10000), result.WithdrawalBalance)

	result, err = svc.FixHold(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, result.Changed)
}

func TestFixHoldZeroesWithoutRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())

	// 冻结记录已失效但用户字段没跟上
	user := seedUser(t, db, &model.User{AccountBalance: 5000, HoldAmount: 4000, WithdrawalBalance: 4000})

	result, err := svc.FixHold(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Zero(t, result.HoldAmount)
	require.Zero(t, result.WithdrawalBalance)
}

func TestFixTrialReset(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	ctx := context.Background()

	user := seedUser(t, db, &model.User{
		AccountBalance:     11000,
		TrialBalance:       model.TrialBalanceAmount,
		CampaignsCompleted: 30,
	})

	result, err := svc.FixTrialReset(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, int64(1000), result.AccountBalance)
	require.Zero(t, result.TrialBalance)

	// 扣除入了流水
	var trialTxn model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, model.TransactionTypeTrialReset).
		First(&trialTxn).Error)
	require.Equal(t, -model.TrialBalanceAmount, trialTxn.Amount)
	require.Equal(t, int64(11000), trialTxn.BalanceBefore)
	require.Equal(t, int64(1000), trialTxn.BalanceAfter)

	// 只清一次，流水也只有一条
	result, err = svc.FixTrialReset(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Equal(t, int64(1000), result.AccountBalance)

	var count int64
	require.NoError(t, db.Model(&model.Transaction{}).
		Where("user_id = ? AND type = ?", user.ID, model.TransactionTypeTrialReset).
		Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestFixAfterDeposit(t *testing.T) {
	db := newTestDB(t)
	svc := NewResetService(db, testConfig())
	fundsRepo := repository.NewFundsRepository(db)
	ctx := context.Background()

	// 充值入账落库但释放步骤丢失：欠款已覆盖，冻结与开关没恢复
	user := seedUser(t, db, &model.User{
		AccountBalance:     500,
		NegativeCommission: 2000,
		HoldAmount:         10000,
		WithdrawalBalance:  10000,
		AllowTask:          false,
	})
	require.NoError(t, fundsRepo.UpsertHold(ctx, nil, user.ID, 10000, model.HoldReasonNegativeCommission))

	result, err := svc.FixAfterDeposit(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, int64(10500), result.AccountBalance)
	require.Zero(t, result.NegativeCommission)
	require.Zero(t, result.HoldAmount)

	reloaded := getUser(t, db, user.ID)
	require.True(t, reloaded.AllowTask)

	hold, err := fundsRepo.GetActiveHold(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, hold)

	// 幂等
	result, err = svc.FixAfterDeposit(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, result.Changed)
}
