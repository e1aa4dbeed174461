package repository

import (
	"context"
	"errors"

	"taskreward/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrBalanceNotEnough   = errors.New("余额不足")
	ErrDailyQuotaExceeded = errors.New("已达当日任务上限")
	ErrOptimisticLock     = errors.New("并发冲突，请重试")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 事务内加行锁读取，账务迁移前必须走这里
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Save 整行落库（行锁读取后的账务迁移结果）
func (r *UserRepository) Save(ctx context.Context, tx *gorm.DB, user *model.User) error {
	if tx == nil {
		tx = r.db
	}
	user.Version++
	return tx.WithContext(ctx).Save(user).Error
}

// DeductBalance 条件扣款：余额充足才会命中，RowsAffected=0 时区分原因
func (r *UserRepository) DeductBalance(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND account_balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"account_balance": gorm.Expr("account_balance - ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		user, err := r.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.AccountBalance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// IncreaseBalance 入账（充值到账、提现驳回退款）
func (r *UserRepository) IncreaseBalance(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"account_balance": gorm.Expr("account_balance + ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// IncrementCompletion 完成任务的核心计账：余额、累计收入、完成数、
// 当日计数、当日佣金一次更新，并在 WHERE 里卡当日上限保证并发安全。
// 调用前必须先把当日计数归位到 today（见 NormalizeDailyCounters）。
func (r *UserRepository) IncrementCompletion(ctx context.Context, tx *gorm.DB, userID int64, commission int64, today string, dailyLimit int) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND daily_count_date = ? AND daily_campaign_count < ?", userID, today, dailyLimit).
		Updates(map[string]interface{}{
			"account_balance":      gorm.Expr("account_balance + ?", commission),
			"total_earnings":       gorm.Expr("total_earnings + ?", commission),
			"campaigns_completed":  gorm.Expr("campaigns_completed + 1"),
			"daily_campaign_count": gorm.Expr("daily_campaign_count + 1"),
			"campaign_commission":  gorm.Expr("campaign_commission + ?", commission),
			"version":              gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, userID); err != nil {
			return err
		}
		return ErrDailyQuotaExceeded
	}

	return nil
}

// NormalizeDailyCounters 跨天后把当日计数清零并记到新日期（懒惰翻转）
func (r *UserRepository) NormalizeDailyCounters(ctx context.Context, tx *gorm.DB, userID int64, today string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND daily_count_date <> ?", userID, today).
		Updates(map[string]interface{}{
			"daily_campaign_count": 0,
			"campaign_commission":  0,
			"daily_count_date":     today,
		}).Error
}

// ListStaleDailyUsers 扫出计数日期落后于 today 的用户，供定时翻转任务分批处理
func (r *UserRepository) ListStaleDailyUsers(ctx context.Context, today string, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("daily_count_date <> ? AND (daily_campaign_count > 0 OR campaign_commission <> 0)", today).
		Limit(limit).
		Find(&users).Error
	return users, err
}
