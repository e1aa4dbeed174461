package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskreward/internal/config"
	"taskreward/internal/ledger"
	"taskreward/internal/model"
	"taskreward/internal/repository"
	"taskreward/pkg/idgen"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken      = errors.New("用户名已被占用")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrAccountInactive    = errors.New("账户未激活或已停用")
	ErrAlreadyCheckedIn   = errors.New("今日已签到")
)

// 推荐注册奖励
const referralBonusAmount = int64(100)

type UserService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
}

func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type RegisterRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=32"`
	Password   string `json:"password" binding:"required,min=6,max=64"`
	Gender     string `json:"gender"`
	ReferredBy string `json:"referredBy"` // 推荐人的推荐码，可空
}

// Register 注册新用户
//
// 固定初始值：账户余额 10000（含 10000 体验金）、任务组 [1]、
// 账户与任务开关均为 inactive，待运营激活。
// 密码只存 bcrypt 哈希。推荐人有效时给推荐人记一笔推荐奖励。
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	var referrer *model.User
	if req.ReferredBy != "" {
		r, err := s.userRepo.GetByReferralCode(ctx, req.ReferredBy)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		referrer = r // 查不到推荐人时静默忽略，不阻塞注册
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		Password:       string(hashed),
		Gender:         req.Gender,
		ReferralCode:   idgen.GenerateReferralCode(),
		ReferredBy:     req.ReferredBy,
		Level:          model.LevelBronze,
		AccountBalance: model.DefaultAccountBalance,
		TrialBalance:   model.TrialBalanceAmount,
		CampaignSet:    model.IntList{1},
		DailyCountDate: utcToday(),
		AllowTask:      true,
		CampaignStatus: model.AccountStatusInactive,
		AccountStatus:  model.AccountStatusInactive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 会员号随机生成，撞唯一索引就换一个重试
		for attempt := 0; ; attempt++ {
			user.MembershipID = idgen.GenerateMembershipID()
			err := tx.WithContext(ctx).Create(user).Error
			if err == nil {
				break
			}
			if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < 5 {
				continue
			}
			return fmt.Errorf("创建用户失败: %w", err)
		}

		if referrer != nil {
			if err := s.userRepo.IncreaseBalance(ctx, tx, referrer.ID, referralBonusAmount); err != nil {
				return fmt.Errorf("发放推荐奖励失败: %w", err)
			}
			transaction := &model.Transaction{
				TransactionID: idgen.GenerateTransactionID(),
				UserID:        referrer.ID,
				Type:          model.TransactionTypeReferralBonus,
				Amount:        referralBonusAmount,
				BalanceBefore: referrer.AccountBalance,
				BalanceAfter:  referrer.AccountBalance + referralBonusAmount,
				Status:        model.TransactionStatusCompleted,
				Remark:        fmt.Sprintf("推荐奖励-%s", user.Username),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("用户注册成功: username=%s, membershipID=%s", user.Username, user.MembershipID)
	return user, nil
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录校验：账户状态闸门 + bcrypt 比对
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.AccountStatus != model.AccountStatusActive {
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

type CheckInResult struct {
	Bonus       int64 `json:"bonus"`
	Streak      int   `json:"streak"`
	DaysClaimed int   `json:"daysClaimed"`
	NewBalance  int64 `json:"newBalance"`
}

// CheckIn 每日签到（UTC 日界）
// 连续签到递增 streak，断签归一；奖励入账并记 daily_bonus 流水
func (s *UserService) CheckIn(ctx context.Context, userID int64) (*CheckInResult, error) {
	var result *CheckInResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		today := now.Format("2006-01-02")

		// 当日奖励以流水为准：同一 UTC 日最多一条 daily_bonus
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		claimed, err := s.transactionRepo.CountByUserTypeToday(ctx, tx, userID, model.TransactionTypeDailyBonus, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("查询签到流水失败: %w", err)
		}
		if claimed > 0 {
			return ErrAlreadyCheckedIn
		}

		if user.LastCheckIn != nil {
			last := user.LastCheckIn.UTC().Format("2006-01-02")
			if last == today {
				return ErrAlreadyCheckedIn
			}
			yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
			if last == yesterday {
				user.CheckInStreak++
			} else {
				user.CheckInStreak = 1
			}
		} else {
			user.CheckInStreak = 1
		}

		bonus := ledger.CheckInBonus(user.CheckInStreak)
		balanceBefore := user.AccountBalance

		user.AccountBalance += bonus
		user.DaysClaimed++
		user.LastCheckIn = &now

		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("签到入账失败: %w", err)
		}

		transaction := &model.Transaction{
			TransactionID: idgen.GenerateTransactionID(),
			UserID:        userID,
			Type:          model.TransactionTypeDailyBonus,
			Amount:        bonus,
			BalanceBefore: balanceBefore,
			BalanceAfter:  user.AccountBalance,
			Status:        model.TransactionStatusCompleted,
			Remark:        fmt.Sprintf("每日签到-第%d天", user.CheckInStreak),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		result = &CheckInResult{
			Bonus:       bonus,
			Streak:      user.CheckInStreak,
			DaysClaimed: user.DaysClaimed,
			NewBalance:  user.AccountBalance,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetUser 查询用户（脱敏由 model 的 json 标签保证）
func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ListTransactions 流水分页查询
func (s *UserService) ListTransactions(ctx context.Context, userID int64, txType string, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, txType, page, pageSize)
}
