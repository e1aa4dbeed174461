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
	"taskreward/internal/infrastructure/lock"
	"taskreward/internal/ledger"
	"taskreward/internal/model"
	"taskreward/internal/repository"
	"taskreward/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrWithdrawNotAllowed = errors.New("未达到提现所需任务量")
	ErrWithdrawHeld       = errors.New("存在未结清的冻结或欠款，暂不可提现")
	ErrHoldOutstanding    = errors.New("存在未结清欠款，不可重复记损")
)

type FundsService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	fundsRepo       *repository.FundsRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewFundsService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *FundsService {
	return &FundsService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		fundsRepo:       repository.NewFundsRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// ============================================================
// 充值
// ============================================================

type CreateDepositRequest struct {
	UserID     int64  `json:"userId" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	AmountType string `json:"amountType"`
}

func (s *FundsService) CreateDeposit(ctx context.Context, req *CreateDepositRequest) (*model.Deposit, error) {
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	amountType := req.AmountType
	if amountType == "" {
		amountType = "BDT"
	}

	deposit := &model.Deposit{
		DepositNo:    idgen.GenerateDepositNo(),
		UserID:       user.ID,
		MembershipID: user.MembershipID,
		Amount:       req.Amount,
		AmountType:   amountType,
		Status:       model.DepositStatusPending,
	}
	if err := s.fundsRepo.CreateDeposit(ctx, deposit); err != nil {
		return nil, fmt.Errorf("创建充值申请失败: %w", err)
	}
	return deposit, nil
}

type ProcessDepositRequest struct {
	DepositNo   string `json:"depositNo" binding:"required"`
	ProcessedBy string `json:"processedBy"`
}

type DepositResult struct {
	Deposit      *model.Deposit `json:"deposit"`
	HoldReleased bool           `json:"holdReleased"`          // 本次审批清掉了负佣金冻结
	RuleUpgraded bool           `json:"ruleUpgraded"`          // 任务组规则发生升档
	NewBalance   int64          `json:"newBalance,omitempty"`
}

// ApproveDeposit 充值审批通过
//
// 【关键点】审批是 deposit_count 永久 +1 的唯一触发点，档位切换不可回退。
// 入账、清债、冻结释放与流水记录在同一个事务里完成；
// 重复审批是幂等操作，返回既有结果而不是报错。
func (s *FundsService) ApproveDeposit(ctx context.Context, req *ProcessDepositRequest) (*DepositResult, error) {
	deposit, err := s.fundsRepo.GetDepositByNo(ctx, req.DepositNo)
	if err != nil {
		return nil, err
	}
	if deposit.Status == model.DepositStatusApproved {
		return &DepositResult{Deposit: deposit}, nil
	}
	if deposit.Status == model.DepositStatusRejected {
		return nil, repository.ErrDepositStatusInvalid
	}

	if s.redisClient != nil {
		settleLock := lock.NewSettleLock(s.redisClient, deposit.UserID, req.DepositNo)
		if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer settleLock.Unlock(ctx)
	}

	result := &DepositResult{Deposit: deposit}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.fundsRepo.UpdateDepositStatus(ctx, tx, req.DepositNo, model.DepositStatusApproved, req.ProcessedBy); err != nil {
			return err
		}

		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, deposit.UserID)
		if err != nil {
			return err
		}

		ruleBefore := commission.GetCampaignSetRule(user.TotalDeposited)
		balanceBefore := user.AccountBalance

		user.DepositCount++
		user.TotalDeposited += deposit.Amount
		released := ledger.ApplyDepositCredit(user, deposit.Amount)

		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}
		if released {
			if err := s.fundsRepo.DeactivateHold(ctx, tx, user.ID); err != nil {
				return err
			}
		}

		remark := fmt.Sprintf("充值-%s", deposit.DepositNo)
		if released {
			remark += "-冻结已释放"
		}
		transaction := &model.Transaction{
			TransactionID: idgen.GenerateTransactionID(),
			UserID:        user.ID,
			Type:          model.TransactionTypeDeposit,
			Amount:        deposit.Amount,
			BalanceBefore: balanceBefore,
			BalanceAfter:  user.AccountBalance,
			Status:        model.TransactionStatusCompleted,
			Remark:        remark,
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		ruleAfter := commission.GetCampaignSetRule(user.TotalDeposited)
		result.HoldReleased = released
		result.RuleUpgraded = ruleAfter.Name != ruleBefore.Name
		result.NewBalance = user.AccountBalance

		payload, _ := json.Marshal(map[string]interface{}{
			"event":        model.EventDepositApproved,
			"userId":       user.ID,
			"depositNo":    deposit.DepositNo,
			"amount":       deposit.Amount,
			"holdReleased": released,
			"approvedAt":   time.Now().UTC().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: deposit.DepositNo,
			Topic:      s.cfg.Kafka.Topic.LedgerEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("充值审批通过: userID=%d, depositNo=%s, amount=%d, holdReleased=%v",
		deposit.UserID, deposit.DepositNo, deposit.Amount, result.HoldReleased)
	return result, nil
}

// RejectDeposit 充值审批驳回（不动账）
func (s *FundsService) RejectDeposit(ctx context.Context, req *ProcessDepositRequest) (*model.Deposit, error) {
	deposit, err := s.fundsRepo.GetDepositByNo(ctx, req.DepositNo)
	if err != nil {
		return nil, err
	}
	if deposit.Status == model.DepositStatusRejected {
		return deposit, nil
	}

	if err := s.fundsRepo.UpdateDepositStatus(ctx, nil, req.DepositNo, model.DepositStatusRejected, req.ProcessedBy); err != nil {
		return nil, err
	}
	deposit.Status = model.DepositStatusRejected
	return deposit, nil
}

// ============================================================
// 提现
// ============================================================

type WithdrawalRequest struct {
	CustomerID     int64  `json:"customerId" binding:"required"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Method         string `json:"method" binding:"required"`
	AccountDetails string `json:"accountDetails"`
}

// RequestWithdrawal 发起提现
//
// 前置条件：任务量达到充值档位规则要求、无未结清冻结/欠款、余额充足。
// 申请即扣减余额，驳回时退回。
func (s *FundsService) RequestWithdrawal(ctx context.Context, req *WithdrawalRequest) (*model.Withdrawal, error) {
	withdrawal := &model.Withdrawal{
		WithdrawalNo:   idgen.GenerateWithdrawalNo(),
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		Method:         req.Method,
		AccountDetails: req.AccountDetails,
		Status:         model.WithdrawalStatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		if !commission.CanUserWithdraw(user.CampaignsCompleted, user.TotalDeposited) {
			return ErrWithdrawNotAllowed
		}
		if user.HasActiveHold() {
			return ErrWithdrawHeld
		}
		if user.AccountBalance < req.Amount {
			return repository.ErrBalanceNotEnough
		}

		if err := s.userRepo.DeductBalance(ctx, tx, req.CustomerID, req.Amount); err != nil {
			return err
		}

		if err := s.fundsRepo.CreateWithdrawal(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		transaction := &model.Transaction{
			TransactionID: idgen.GenerateTransactionID(),
			UserID:        req.CustomerID,
			Type:          model.TransactionTypeWithdrawal,
			Amount:        -req.Amount,
			BalanceBefore: user.AccountBalance,
			BalanceAfter:  user.AccountBalance - req.Amount,
			Status:        model.TransactionStatusPending,
			Remark:        fmt.Sprintf("提现-%s-%s", withdrawal.WithdrawalNo, req.Method),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event":        model.EventWithdrawalUpdated,
			"userId":       req.CustomerID,
			"withdrawalNo": withdrawal.WithdrawalNo,
			"amount":       req.Amount,
			"status":       model.WithdrawalStatusPending,
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: withdrawal.WithdrawalNo,
			Topic:      s.cfg.Kafka.Topic.LedgerEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("提现申请已创建: userID=%d, withdrawalNo=%s, amount=%d", req.CustomerID, withdrawal.WithdrawalNo, req.Amount)
	return withdrawal, nil
}

type ProcessWithdrawalRequest struct {
	WithdrawalNo string `json:"withdrawalNo" binding:"required"`
	Action       string `json:"action" binding:"required"` // complete / reject
	ProcessedBy  string `json:"processedBy"`
}

// ProcessWithdrawal 提现终审：completed / rejected 为终态
// 驳回时在同一事务里把扣掉的余额退回；重复提交同一动作是幂等的
func (s *FundsService) ProcessWithdrawal(ctx context.Context, req *ProcessWithdrawalRequest) (*model.Withdrawal, error) {
	var toStatus string
	switch req.Action {
	case "complete":
		toStatus = model.WithdrawalStatusCompleted
	case "reject":
		toStatus = model.WithdrawalStatusRejected
	default:
		return nil, repository.ErrWithdrawalStatusInvalid
	}

	withdrawal, err := s.fundsRepo.GetWithdrawalByNo(ctx, req.WithdrawalNo)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status == toStatus {
		return withdrawal, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.fundsRepo.UpdateWithdrawalStatus(ctx, tx, req.WithdrawalNo, withdrawal.Status, toStatus, req.ProcessedBy); err != nil {
			return err
		}

		if toStatus == model.WithdrawalStatusRejected {
			user, err := s.userRepo.GetByIDForUpdate(ctx, tx, withdrawal.CustomerID)
			if err != nil {
				return err
			}
			if err := s.userRepo.IncreaseBalance(ctx, tx, withdrawal.CustomerID, withdrawal.Amount); err != nil {
				return fmt.Errorf("退回余额失败: %w", err)
			}

			transaction := &model.Transaction{
				TransactionID: idgen.GenerateTransactionID(),
				UserID:        withdrawal.CustomerID,
				Type:          model.TransactionTypeWithdrawal,
				Amount:        withdrawal.Amount,
				BalanceBefore: user.AccountBalance,
				BalanceAfter:  user.AccountBalance + withdrawal.Amount,
				Status:        model.TransactionStatusCompleted,
				Remark:        fmt.Sprintf("提现驳回退款-%s", withdrawal.WithdrawalNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event":        model.EventWithdrawalUpdated,
			"userId":       withdrawal.CustomerID,
			"withdrawalNo": withdrawal.WithdrawalNo,
			"amount":       withdrawal.Amount,
			"status":       toStatus,
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: withdrawal.WithdrawalNo,
			Topic:      s.cfg.Kafka.Topic.LedgerEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	withdrawal.Status = toStatus
	log.Printf("提现处理完成: withdrawalNo=%s, status=%s", req.WithdrawalNo, toStatus)
	return withdrawal, nil
}

// ============================================================
// 负佣金事件
// ============================================================

type NegativeCommissionRequest struct {
	UserID int64 `json:"userId" binding:"required"`
	Loss   int64 `json:"loss" binding:"required,gt=0"`
}

// ApplyNegativeCommission 记损：余额整体冻结、账面转欠款，
// 冻结记录与用户字段在同一事务里写入，杜绝字段漂移
func (s *FundsService) ApplyNegativeCommission(ctx context.Context, req *NegativeCommissionRequest) (*model.User, error) {
	var applied *model.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user.NegativeCommission > 0 {
			return ErrHoldOutstanding
		}

		hold := ledger.ApplyNegativeCommission(user, req.Loss)
		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return err
		}
		if err := s.fundsRepo.UpsertHold(ctx, tx, user.ID, hold, model.HoldReasonNegativeCommission); err != nil {
			return err
		}

		applied = user

		payload, _ := json.Marshal(map[string]interface{}{
			"event":  "ledger.negative_commission",
			"userId": user.ID,
			"loss":   req.Loss,
			"hold":   hold,
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: fmt.Sprintf("user-%d", user.ID),
			Topic:      s.cfg.Kafka.Topic.LedgerEvents,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("负佣金已记损: userID=%d, loss=%d, hold=%d", req.UserID, req.Loss, applied.HoldAmount)
	return applied, nil
}
