package service

import (
	"context"
	"testing"

	"taskreward/internal/model"
	"taskreward/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestCompleteCampaignSettlesCommission(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())

	user := seedUser(t, db, &model.User{AccountBalance: 5000, DepositCount: 1, TotalDeposited: 500})
	campaign := seedCampaign(t, db, &model.Campaign{})

	result, err := svc.CompleteCampaign(context.Background(), &CompleteRequest{
		CampaignID: campaign.ID,
		UserID:     user.ID,
	})
	require.NoError(t, err)

	// 余额 5000 落在 Basic 档，单笔佣金 [20, 38]
	require.GreaterOrEqual(t, result.Commission, int64(20))
	require.LessOrEqual(t, result.Commission, int64(38))
	require.Equal(t, int64(5000)+result.Commission, result.NewBalance)
	require.False(t, result.TrialCleared)

	reloaded := getUser(t, db, user.ID)
	require.Equal(t, result.NewBalance, reloaded.AccountBalance)
	require.Equal(t, result.Commission, reloaded.TotalEarnings)
	require.Equal(t, 1, reloaded.CampaignsCompleted)
	require.Equal(t, 1, reloaded.DailyCampaignCount)
	require.Equal(t, result.Commission, reloaded.CampaignCommission)

	// 流水记录交易前后余额
	var transaction model.Transaction
	require.NoError(t, db.Where("transaction_id = ?", result.TransactionID).First(&transaction).Error)
	require.Equal(t, model.TransactionTypeCampaignEarning, transaction.Type)
	require.Equal(t, result.NewBalance-result.Commission, transaction.BalanceBefore)
	require.Equal(t, result.NewBalance, transaction.BalanceAfter)
}

func TestCompleteCampaignDailyQuota(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())
	ctx := context.Background()

	// 已充值用户，避免体验金清零干扰
	user := seedUser(t, db, &model.User{AccountBalance: 5000, DepositCount: 1, TotalDeposited: 500})
	campaign := seedCampaign(t, db, &model.Campaign{})

	// 前 30 次全部成功
	for i := 0; i < 30; i++ {
		_, err := svc.CompleteCampaign(ctx, &CompleteRequest{
			CampaignID: campaign.ID,
			UserID:     user.ID,
			Commission: 10,
		})
		require.NoError(t, err, "第 %d 次结算", i+1)
	}

	// 第 31 次触顶
	_, err := svc.CompleteCampaign(ctx, &CompleteRequest{
		CampaignID: campaign.ID,
		UserID:     user.ID,
		Commission: 10,
	})
	require.ErrorIs(t, err, repository.ErrDailyQuotaExceeded)

	reloaded := getUser(t, db, user.ID)
	require.Equal(t, 30, reloaded.DailyCampaignCount)
	require.Equal(t, int64(5000+30*10), reloaded.AccountBalance)
}

func TestCompleteCampaignRollsOverStaleCounters(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())

	// 昨日已触顶的计数不应挡住今天的第一单
	user := seedUser(t, db, &model.User{
		AccountBalance:     5000,
		DepositCount:       1,
		TotalDeposited:     500,
		DailyCampaignCount: 30,
		CampaignCommission: 900,
		DailyCountDate:     "2000-01-01",
	})
	campaign := seedCampaign(t, db, &model.Campaign{})

	_, err := svc.CompleteCampaign(context.Background(), &CompleteRequest{
		CampaignID: campaign.ID,
		UserID:     user.ID,
		Commission: 10,
	})
	require.NoError(t, err)

	reloaded := getUser(t, db, user.ID)
	require.Equal(t, 1, reloaded.DailyCampaignCount)
	require.Equal(t, int64(10), reloaded.CampaignCommission)
	require.Equal(t, utcToday(), reloaded.DailyCountDate)
}

func TestCompleteCampaignTriggersTrialReset(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())

	// 零充值用户的第 30 单：同一事务里清零体验金
	user := seedUser(t, db, &model.User{
		AccountBalance:     11000,
		TrialBalance:       model.TrialBalanceAmount,
		CampaignsCompleted: 29,
	})
	campaign := seedCampaign(t, db, &model.Campaign{})

	result, err := svc.CompleteCampaign(context.Background(), &CompleteRequest{
		CampaignID: campaign.ID,
		UserID:     user.ID,
		Commission: 50,
	})
	require.NoError(t, err)
	require.True(t, result.TrialCleared)
	require.Equal(t, int64(11000+50-model.TrialBalanceAmount), result.NewBalance)

	reloaded := getUser(t, db, user.ID)
	require.Zero(t, reloaded.TrialBalance)
	require.Equal(t, result.NewBalance, reloaded.AccountBalance)
	require.Equal(t, 30, reloaded.CampaignsCompleted)

	// 扣除入了流水，前后余额衔接佣金流水
	var trialTxn model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, model.TransactionTypeTrialReset).
		First(&trialTxn).Error)
	require.Equal(t, -model.TrialBalanceAmount, trialTxn.Amount)
	require.Equal(t, int64(11050), trialTxn.BalanceBefore)
	require.Equal(t, result.NewBalance, trialTxn.BalanceAfter)
}

func TestCompleteCampaignUnknownIDs(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())
	ctx := context.Background()

	user := seedUser(t, db, &model.User{AccountBalance: 5000})
	campaign := seedCampaign(t, db, &model.Campaign{})

	_, err := svc.CompleteCampaign(ctx, &CompleteRequest{CampaignID: campaign.ID, UserID: user.ID + 999})
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = svc.CompleteCampaign(ctx, &CompleteRequest{CampaignID: campaign.ID + 999, UserID: user.ID})
	require.ErrorIs(t, err, repository.ErrCampaignNotFound)
}

func TestGetProgress(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())

	user := seedUser(t, db, &model.User{
		AccountBalance:     5000,
		CampaignsCompleted: 30,
		CampaignSet:        model.IntList{1},
		DailyCampaignCount: 3,
		CampaignCommission: 90,
	})

	p, err := svc.GetProgress(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "Basic", p.TierName)
	require.Equal(t, int64(20), p.MinCommission)
	require.Equal(t, int64(38), p.MaxCommission)
	require.Equal(t, int64(1000), p.MaxTotalCommission)
	require.Equal(t, "New User", p.RuleName)
	require.Equal(t, 2, p.MaxCampaignSet)
	require.Equal(t, 30, p.TotalTasksRequired)
	require.Equal(t, 1, p.CurrentSet)
	require.Equal(t, 30, p.TasksInCurrentSet)
	require.Equal(t, 3, p.TodayCount)
	require.Equal(t, int64(90), p.TodayCommission)
	require.True(t, p.CanWithdraw)
}

func TestGetProgressHidesStaleDailyCounters(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, nil, testConfig())

	user := seedUser(t, db, &model.User{
		AccountBalance:     5000,
		DailyCampaignCount: 12,
		CampaignCommission: 300,
		DailyCountDate:     "2000-01-01",
	})

	p, err := svc.GetProgress(context.Background(), user.ID)
	require.NoError(t, err)
	require.Zero(t, p.TodayCount)
	require.Zero(t, p.TodayCommission)
}
