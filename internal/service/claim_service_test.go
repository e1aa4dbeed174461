package service

import (
	"context"
	"testing"
	"time"

	"taskreward/internal/model"
	"taskreward/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestClaimDeductsBalanceAndMarksTask(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())
	ctx := context.Background()

	user := seedUser(t, db, &model.User{AccountBalance: 10000, AllowTask: true})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: user.ID, TaskPrice: 500, TaskCommission: 38})

	claim, err := svc.Claim(ctx, &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.NoError(t, err)
	require.Equal(t, model.ClaimStatusClaimed, claim.Status)
	require.Equal(t, 0, claim.ResetSetNumber)

	require.Equal(t, int64(9500), getUser(t, db, user.ID).AccountBalance)

	var reloaded model.CustomerTask
	require.NoError(t, db.First(&reloaded, task.ID).Error)
	require.Equal(t, model.TaskStatusClaimed, reloaded.Status)

	require.Equal(t, int64(1), countOutbox(t, db))
}

func TestClaimTwiceFailsAndDeductsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())
	ctx := context.Background()

	user := seedUser(t, db, &model.User{AccountBalance: 10000, AllowTask: true})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: user.ID, TaskPrice: 500})

	_, err := svc.Claim(ctx, &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.ErrorIs(t, err, repository.ErrClaimExists)

	// 只扣了一次款，只有一条领取记录
	require.Equal(t, int64(9500), getUser(t, db, user.ID).AccountBalance)
	var claims int64
	require.NoError(t, db.Model(&model.CampaignClaim{}).Where("customer_id = ?", user.ID).Count(&claims).Error)
	require.Equal(t, int64(1), claims)
}

func TestClaimOtherUsersTaskReportsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())

	owner := seedUser(t, db, &model.User{AccountBalance: 10000})
	intruder := seedUser(t, db, &model.User{AccountBalance: 10000})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: owner.ID, TaskPrice: 500})

	_, err := svc.Claim(context.Background(), &ClaimRequest{CustomerID: intruder.ID, TaskID: task.ID})
	require.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestClaimNonActiveTaskRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())

	user := seedUser(t, db, &model.User{AccountBalance: 10000})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: user.ID, TaskPrice: 500, Status: model.TaskStatusPending})

	_, err := svc.Claim(context.Background(), &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.ErrorIs(t, err, repository.ErrTaskStatusInvalid)
}

func TestClaimInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())

	user := seedUser(t, db, &model.User{AccountBalance: 300})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: user.ID, TaskPrice: 500})

	_, err := svc.Claim(context.Background(), &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 余额未动，任务仍是 active，没有领取记录和事件
	require.Equal(t, int64(300), getUser(t, db, user.ID).AccountBalance)
	var reloaded model.CustomerTask
	require.NoError(t, db.First(&reloaded, task.ID).Error)
	require.Equal(t, model.TaskStatusActive, reloaded.Status)
	require.Equal(t, int64(0), countOutbox(t, db))
}

func TestClaimAgainAfterSetReset(t *testing.T) {
	db := newTestDB(t)
	svc := NewClaimService(db, nil, testConfig())
	taskRepo := repository.NewTaskRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, &model.User{AccountBalance: 10000})
	task := seedTask(t, db, &model.CustomerTask{CustomerID: user.ID, TaskPrice: 500})

	_, err := svc.Claim(ctx, &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.NoError(t, err)

	// 组重置：在役记录打上新组号，任务放回 active
	stamped, err := taskRepo.StampClaimsReset(ctx, db, user.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), stamped)
	require.NoError(t, db.Model(&model.CustomerTask{}).Where("id = ?", task.ID).
		Update("status", model.TaskStatusActive).Error)

	// 同一任务在新组可再次领取
	claim, err := svc.Claim(ctx, &ClaimRequest{CustomerID: user.ID, TaskID: task.ID})
	require.NoError(t, err)
	require.Equal(t, 0, claim.ResetSetNumber)

	// 历史记录保留且带重置时间
	var stampedClaim model.CampaignClaim
	require.NoError(t, db.Where("customer_id = ? AND reset_set_number = ?", user.ID, 2).First(&stampedClaim).Error)
	require.NotNil(t, stampedClaim.ResetAt)
	require.WithinDuration(t, time.Now().UTC(), *stampedClaim.ResetAt, time.Minute)
}
