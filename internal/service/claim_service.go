package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskreward/internal/config"
	"taskreward/internal/infrastructure/lock"
	"taskreward/internal/model"
	"taskreward/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type ClaimService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	userRepo    *repository.UserRepository
	taskRepo    *repository.TaskRepository
	outboxRepo  *repository.OutboxRepository
}

func NewClaimService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ClaimService {
	return &ClaimService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		taskRepo:    repository.NewTaskRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type ClaimRequest struct {
	CustomerID int64 `json:"customerId" binding:"required"`
	TaskID     int64 `json:"taskId" binding:"required"`
}

// Claim 领取任务
//
// 【关键点】校验顺序是对外契约的一部分，不可调换：
// 1. 任务存在且属于当前用户，否则 NotFound
// 2. 不存在在役领取记录，否则 Conflict
// 3. 任务状态必须是 active
// 4. 余额必须覆盖垫付价，否则提示去充值
// 通过后在一个数据库事务里完成 扣款 + 插入领取记录 + 任务状态流转，
// 任何一步失败整体回滚，绝不出现"扣了钱没记录"的中间态。
func (s *ClaimService) Claim(ctx context.Context, req *ClaimRequest) (*model.CampaignClaim, error) {
	if err := s.precheck(ctx, req); err != nil {
		return nil, err
	}

	// 按用户维度加锁，挡住双端同时领取；
	// 测试环境可不配置 Redis，此时并发安全完全由数据库条件更新与唯一索引兜底
	if s.redisClient != nil {
		claimLock := lock.NewClaimLock(s.redisClient, req.CustomerID, fmt.Sprintf("claim-%d", req.TaskID))
		if err := claimLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer claimLock.Unlock(ctx)

		// 获取锁后重新校验，前一个持锁请求可能已经领取
		if err := s.precheck(ctx, req); err != nil {
			return nil, err
		}
	}

	task, err := s.taskRepo.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	claim := &model.CampaignClaim{
		CustomerID:       req.CustomerID,
		TaskID:           req.TaskID,
		TaskNumber:       task.TaskNumber,
		CommissionEarned: task.TaskCommission,
		Status:           model.ClaimStatusClaimed,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.DeductBalance(ctx, tx, req.CustomerID, task.TaskPrice); err != nil {
			return err
		}

		if err := s.taskRepo.CreateClaim(ctx, tx, claim); err != nil {
			return err
		}

		if err := s.taskRepo.UpdateStatus(ctx, tx, req.TaskID, model.TaskStatusActive, model.TaskStatusClaimed); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event":      model.EventTaskClaimed,
			"customerId": req.CustomerID,
			"taskId":     req.TaskID,
			"taskPrice":  task.TaskPrice,
			"claimedAt":  time.Now().UTC().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: fmt.Sprintf("task-%d", req.TaskID),
			Topic:      s.cfg.Kafka.Topic.TaskEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("任务领取成功: customerID=%d, taskID=%d, price=%d", req.CustomerID, req.TaskID, task.TaskPrice)
	return claim, nil
}

// precheck 按契约顺序做前置校验
func (s *ClaimService) precheck(ctx context.Context, req *ClaimRequest) error {
	task, err := s.taskRepo.GetByID(ctx, req.TaskID)
	if err != nil {
		return err
	}
	if task.CustomerID != req.CustomerID {
		// 不暴露他人任务的存在
		return repository.ErrTaskNotFound
	}

	existing, err := s.taskRepo.GetLiveClaim(ctx, req.CustomerID, req.TaskID)
	if err != nil {
		return fmt.Errorf("查询领取记录失败: %w", err)
	}
	if existing != nil {
		return repository.ErrClaimExists
	}

	if task.Status != model.TaskStatusActive {
		return repository.ErrTaskStatusInvalid
	}

	user, err := s.userRepo.GetByID(ctx, req.CustomerID)
	if err != nil {
		return err
	}
	if user.AccountBalance < task.TaskPrice {
		return repository.ErrBalanceNotEnough
	}

	return nil
}

// ListTasks 查询用户任务列表，支持按状态过滤
func (s *ClaimService) ListTasks(ctx context.Context, customerID int64, status string, page, pageSize int) ([]*model.CustomerTask, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.taskRepo.ListByCustomer(ctx, customerID, status, page, pageSize)
}
