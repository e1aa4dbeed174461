package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskreward/internal/commission"
	"taskreward/internal/config"
	"taskreward/internal/infrastructure/lock"
	"taskreward/internal/ledger"
	"taskreward/internal/model"
	"taskreward/internal/repository"
	"taskreward/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type CampaignService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	campaignRepo    *repository.CampaignRepository
	taskRepo        *repository.TaskRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewCampaignService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CampaignService {
	return &CampaignService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		campaignRepo:    repository.NewCampaignRepository(db),
		taskRepo:        repository.NewTaskRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type CompleteRequest struct {
	CampaignID int64 `json:"campaignId" binding:"required"`
	UserID     int64 `json:"userId" binding:"required"`
	Commission int64 `json:"commission"` // 0 表示按余额档位随机计算
}

type CompleteResult struct {
	Commission    int64  `json:"commission"`
	NewBalance    int64  `json:"newBalance"`
	TransactionID string `json:"transactionId"`
	TrialCleared  bool   `json:"trialCleared,omitempty"` // 本次触发了体验金清零
}

// utcToday 当日 UTC 日期，所有"当日"判定统一用它
func utcToday() string {
	return time.Now().UTC().Format("2006-01-02")
}

// CompleteCampaign 完成任务并结算佣金
//
// 【关键点】整个结算在一个数据库事务里完成：
// 1. 跨天先把当日计数翻转归零（懒惰翻转，定时任务只是加速器）
// 2. 行锁读取用户，当日上限校验 + 条件更新双重保险
// 3. 余额、累计收入、完成数、当日计数、当日佣金一次累加
// 4. 达标的零充值用户在同一事务里清零体验金（派生字段不再事后补账）
// 5. 事务内回读余额，返回的 newBalance 一定是落库后的权威值
func (s *CampaignService) CompleteCampaign(ctx context.Context, req *CompleteRequest) (*CompleteResult, error) {
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.campaignRepo.GetByID(ctx, req.CampaignID); err != nil {
		return nil, err
	}

	comm := req.Commission
	if comm <= 0 {
		// 未指定佣金时按当前余额档位随机
		comm = commission.CalculateCommission(user.AccountBalance)
	}

	if s.redisClient != nil {
		settleLock := lock.NewSettleLock(s.redisClient, req.UserID, fmt.Sprintf("complete-%d", req.CampaignID))
		if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer settleLock.Unlock(ctx)
	}

	today := utcToday()
	result := &CompleteResult{Commission: comm}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.NormalizeDailyCounters(ctx, tx, req.UserID, today); err != nil {
			return fmt.Errorf("翻转当日计数失败: %w", err)
		}

		locked, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if locked.DailyCampaignCount >= s.cfg.Business.DailyCampaignLimit {
			return repository.ErrDailyQuotaExceeded
		}

		if err := s.userRepo.IncrementCompletion(ctx, tx, req.UserID, comm, today, s.cfg.Business.DailyCampaignLimit); err != nil {
			return err
		}

		// 回读落库后的权威余额，绝不使用事前快照推算
		updated, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		transaction := &model.Transaction{
			TransactionID: idgen.GenerateTransactionID(),
			UserID:        req.UserID,
			Type:          model.TransactionTypeCampaignEarning,
			Amount:        comm,
			BalanceBefore: updated.AccountBalance - comm,
			BalanceAfter:  updated.AccountBalance,
			Status:        model.TransactionStatusCompleted,
			Remark:        fmt.Sprintf("任务佣金-campaign-%d", req.CampaignID),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		// 零充值用户首次达到 30 单：同一事务里清零体验金
		if ledger.ApplyTrialReset(updated) {
			result.TrialCleared = true
			if err := s.userRepo.Save(ctx, tx, updated); err != nil {
				return fmt.Errorf("清零体验金失败: %w", err)
			}
			// 扣除也要入流水，保持前后余额链条可对账
			trialTxn := &model.Transaction{
				TransactionID: idgen.GenerateTransactionID(),
				UserID:        req.UserID,
				Type:          model.TransactionTypeTrialReset,
				Amount:        -model.TrialBalanceAmount,
				BalanceBefore: updated.AccountBalance + model.TrialBalanceAmount,
				BalanceAfter:  updated.AccountBalance,
				Status:        model.TransactionStatusCompleted,
				Remark:        "体验金清零",
			}
			if err := s.transactionRepo.Create(ctx, tx, trialTxn); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		result.NewBalance = updated.AccountBalance
		result.TransactionID = transaction.TransactionID

		payload, _ := json.Marshal(map[string]interface{}{
			"event":         model.EventCampaignCompleted,
			"userId":        req.UserID,
			"campaignId":    req.CampaignID,
			"commission":    comm,
			"transactionId": transaction.TransactionID,
			"completedAt":   time.Now().UTC().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: transaction.TransactionID,
			Topic:      s.cfg.Kafka.Topic.TaskEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("任务结算成功: userID=%d, campaignID=%d, commission=%d, newBalance=%d",
		req.UserID, req.CampaignID, comm, result.NewBalance)
	return result, nil
}

// ListCampaigns 查询可接任务模板
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int) ([]*model.Campaign, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.campaignRepo.ListActive(ctx, page, pageSize)
}

// Progress 用户任务进度概览（档位、规则、是否可提现）
type Progress struct {
	Level              string `json:"level"`
	TierName           string `json:"tierName"`
	MinCommission      int64  `json:"minCommission"`
	MaxCommission      int64  `json:"maxCommission"`
	MaxTotalCommission int64  `json:"maxTotalCommission"`
	RuleName           string `json:"ruleName"`
	MaxCampaignSet     int    `json:"maxCampaignSet"`
	TotalTasksRequired int    `json:"totalTasksRequired"`
	CampaignsCompleted int    `json:"campaignsCompleted"`
	CurrentSet         int    `json:"currentSet"`
	TasksInCurrentSet  int    `json:"tasksInCurrentSet"`
	LiveClaims         int64  `json:"liveClaims"` // 在役（未随组重置归档）的领取记录数
	TodayCount         int    `json:"todayCount"`
	TodayCommission    int64  `json:"todayCommission"`
	CanWithdraw        bool   `json:"canWithdraw"`
}

// GetProgress 汇总档位与任务组规则，供客户端首页展示
func (s *CampaignService) GetProgress(ctx context.Context, userID int64) (*Progress, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := commission.GetCommissionTier(user.AccountBalance)
	rule := commission.GetCampaignSetRule(user.TotalDeposited)
	currentSet := user.CampaignSet.Last()
	if currentSet == 0 {
		currentSet = 1
	}

	liveClaims, err := s.taskRepo.CountLiveClaims(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		Level:              user.Level,
		RuleName:           rule.Name,
		MaxCampaignSet:     rule.MaxCampaignSet,
		TotalTasksRequired: rule.TotalTasksRequired,
		CampaignsCompleted: user.CampaignsCompleted,
		CurrentSet:         currentSet,
		TasksInCurrentSet:  commission.TasksInCurrentSet(user.CampaignsCompleted, currentSet),
		LiveClaims:         liveClaims,
		CanWithdraw:        commission.CanUserWithdraw(user.CampaignsCompleted, user.TotalDeposited),
	}
	if tier != nil {
		p.TierName = tier.Name
		p.MinCommission = tier.MinCommission
		p.MaxCommission = tier.MaxCommission
		p.MaxTotalCommission = tier.MaxTotalCommission
	}
	// 跨天后的过期计数不展示
	if user.DailyCountDate == utcToday() {
		p.TodayCount = user.DailyCampaignCount
		p.TodayCommission = user.CampaignCommission
	}
	return p, nil
}
