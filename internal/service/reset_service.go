package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"taskreward/internal/commission"
	"taskreward/internal/config"
	"taskreward/internal/ledger"
	"taskreward/internal/model"
	"taskreward/internal/repository"
	"taskreward/pkg/idgen"

	"gorm.io/gorm"
)

var (
	ErrResetNotReady  = errors.New("必须完成当前组 30 单任务后才能进入下一组")
	ErrMaxSetsReached = errors.New("已达当前档位的最大任务组数量")
)

// ResetService 任务组重置与账务修复
//
// 修复接口是历史契约：正常路径已把派生字段收进事务内统一更新（见 ledger 包），
// 这里保留幂等修复入口，数据一致时返回"无需修复"，重复调用永远不是错误。
type ResetService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	taskRepo        *repository.TaskRepository
	fundsRepo       *repository.FundsRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewResetService(db *gorm.DB, cfg *config.Config) *ResetService {
	return &ResetService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		taskRepo:        repository.NewTaskRepository(db),
		fundsRepo:       repository.NewFundsRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type ResetResult struct {
	NewSetNumber   int  `json:"newSetNumber"`
	TotalSets      int  `json:"totalSets"`
	TasksCompleted int  `json:"tasksCompleted"`
	CanWithdraw    bool `json:"canWithdraw"`
}

// ResetTaskSet 进入下一任务组
//
// 前置条件：当前组已完成 30 单，且任务组数量未到充值档位上限。
// 在役领取记录统一打上新组号（不删除），同一任务在新组可重新领取。
func (s *ResetService) ResetTaskSet(ctx context.Context, userID int64) (*ResetResult, error) {
	var result *ResetResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		rule := commission.GetCampaignSetRule(user.TotalDeposited)
		currentSet := user.CampaignSet.Last()
		if currentSet == 0 {
			currentSet = 1
		}

		if commission.TasksInCurrentSet(user.CampaignsCompleted, currentSet) < commission.TasksPerSet {
			return ErrResetNotReady
		}
		if len(user.CampaignSet) >= rule.MaxCampaignSet {
			return ErrMaxSetsReached
		}

		newSet := commission.GetNextCampaignSet(currentSet, user.TotalDeposited)
		if newSet == currentSet {
			return ErrMaxSetsReached
		}

		user.CampaignSet = append(user.CampaignSet, newSet)
		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("更新任务组失败: %w", err)
		}

		stamped, err := s.taskRepo.StampClaimsReset(ctx, tx, userID, newSet)
		if err != nil {
			return fmt.Errorf("标记领取记录失败: %w", err)
		}

		result = &ResetResult{
			NewSetNumber:   newSet,
			TotalSets:      len(user.CampaignSet),
			TasksCompleted: user.CampaignsCompleted,
			CanWithdraw:    commission.CanUserWithdraw(user.CampaignsCompleted, user.TotalDeposited),
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event":         model.EventSetReset,
			"userId":        userID,
			"newSetNumber":  newSet,
			"claimsStamped": stamped,
			"resetAt":       time.Now().UTC().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: fmt.Sprintf("user-%d-set-%d", userID, newSet),
			Topic:      s.cfg.Kafka.Topic.TaskEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("任务组重置成功: userID=%d, newSet=%d", userID, result.NewSetNumber)
	return result, nil
}

// ============================================================
// 幂等修复接口
// ============================================================

// FixResult 修复结果；Changed=false 表示数据本来就一致
type FixResult struct {
	Changed            bool  `json:"changed"`
	AccountBalance     int64 `json:"accountBalance"`
	TrialBalance       int64 `json:"trialBalance"`
	HoldAmount         int64 `json:"holdAmount"`
	WithdrawalBalance  int64 `json:"withdrawalBalance"`
	NegativeCommission int64 `json:"negativeCommission"`
}

func fixResultFrom(u *model.User, changed bool) *FixResult {
	return &FixResult{
		Changed:            changed,
		AccountBalance:     u.AccountBalance,
		TrialBalance:       u.TrialBalance,
		HoldAmount:         u.HoldAmount,
		WithdrawalBalance:  u.WithdrawalBalance,
		NegativeCommission: u.NegativeCommission,
	}
}

// FixNegativeBalance 重算负佣金冻结字段（hold = 事前余额 + 损失金额）
func (s *ResetService) FixNegativeBalance(ctx context.Context, userID int64) (*FixResult, error) {
	var result *FixResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed := ledger.RepairNegativeState(user)
		if changed {
			if err := s.userRepo.Save(ctx, tx, user); err != nil {
				return err
			}
			if user.NegativeCommission > 0 {
				if err := s.fundsRepo.UpsertHold(ctx, tx, userID, user.HoldAmount, model.HoldReasonNegativeCommission); err != nil {
					return err
				}
			} else {
				if err := s.fundsRepo.DeactivateHold(ctx, tx, userID); err != nil {
					return err
				}
			}
			log.Printf("负佣金字段已修复: userID=%d, hold=%d", userID, user.HoldAmount)
		}

		result = fixResultFrom(user, changed)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// FixHold 以生效中的冻结记录为准，回写用户冻结字段
func (s *ResetService) FixHold(ctx context.Context, userID int64) (*FixResult, error) {
	hold, err := s.fundsRepo.GetActiveHold(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result *FixResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		expected := int64(0)
		if hold != nil {
			expected = hold.HoldAmount
		}

		changed := user.HoldAmount != expected || user.WithdrawalBalance != expected
		if changed {
			user.HoldAmount = expected
			user.WithdrawalBalance = expected
			if err := s.userRepo.Save(ctx, tx, user); err != nil {
				return err
			}
			log.Printf("冻结字段已对齐冻结记录: userID=%d, hold=%d", userID, expected)
		}

		result = fixResultFrom(user, changed)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// FixTrialReset 手工触发体验金清零（仅在达标且未清零时生效）
func (s *ResetService) FixTrialReset(ctx context.Context, userID int64) (*FixResult, error) {
	var result *FixResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed := ledger.ApplyTrialReset(user)
		if changed {
			if err := s.userRepo.Save(ctx, tx, user); err != nil {
				return err
			}
			// 扣除也要入流水，保持前后余额链条可对账
			trialTxn := &model.Transaction{
				TransactionID: idgen.GenerateTransactionID(),
				UserID:        userID,
				Type:          model.TransactionTypeTrialReset,
				Amount:        -model.TrialBalanceAmount,
				BalanceBefore: user.AccountBalance + model.TrialBalanceAmount,
				BalanceAfter:  user.AccountBalance,
				Status:        model.TransactionStatusCompleted,
				Remark:        "体验金清零",
			}
			if err := s.transactionRepo.Create(ctx, tx, trialTxn); err != nil {
				return err
			}
			log.Printf("体验金已清零: userID=%d, balance=%d", userID, user.AccountBalance)
		}

		result = fixResultFrom(user, changed)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// FixAfterDeposit 充值后欠款已覆盖但冻结未释放时，补做释放
func (s *ResetService) FixAfterDeposit(ctx context.Context, userID int64) (*FixResult, error) {
	var result *FixResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		changed := false
		if ledger.PendingHoldRelease(user) {
			ledger.ReleaseHold(user)
			if err := s.userRepo.Save(ctx, tx, user); err != nil {
				return err
			}
			if err := s.fundsRepo.DeactivateHold(ctx, tx, userID); err != nil {
				return err
			}
			changed = true
			log.Printf("充值后冻结已释放: userID=%d, balance=%d", userID, user.AccountBalance)
		}

		result = fixResultFrom(user, changed)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}
