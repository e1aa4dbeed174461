package repository

import (
	"context"
	"errors"
	"time"

	"taskreward/internal/model"

	"gorm.io/gorm"
)

var (
	ErrDepositNotFound         = errors.New("充值申请不存在")
	ErrDepositStatusInvalid    = errors.New("充值申请状态不合法")
	ErrWithdrawalNotFound      = errors.New("提现申请不存在")
	ErrWithdrawalStatusInvalid = errors.New("提现申请状态不合法")
)

type FundsRepository struct {
	db *gorm.DB
}

func NewFundsRepository(db *gorm.DB) *FundsRepository {
	return &FundsRepository{db: db}
}

// ============================================================
// 充值
// ============================================================

func (r *FundsRepository) CreateDeposit(ctx context.Context, deposit *model.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

func (r *FundsRepository) GetDepositByNo(ctx context.Context, depositNo string) (*model.Deposit, error) {
	var deposit model.Deposit
	err := r.db.WithContext(ctx).Where("deposit_no = ?", depositNo).First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	return &deposit, nil
}

// UpdateDepositStatus 审批流转：仅 pending 可流转到 approved/rejected
func (r *FundsRepository) UpdateDepositStatus(ctx context.Context, tx *gorm.DB, depositNo, toStatus, processedBy string) error {
	if toStatus != model.DepositStatusApproved && toStatus != model.DepositStatusRejected {
		return ErrDepositStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.Deposit{}).
		Where("deposit_no = ? AND status = ?", depositNo, model.DepositStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"processed_at": &now,
			"processed_by": processedBy,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrDepositStatusInvalid
	}

	return nil
}

func (r *FundsRepository) ListDepositsByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.Deposit, int64, error) {
	var deposits []*model.Deposit
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Deposit{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&deposits).Error

	return deposits, total, err
}

// ============================================================
// 提现
// ============================================================

func (r *FundsRepository) CreateWithdrawal(ctx context.Context, tx *gorm.DB, withdrawal *model.Withdrawal) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(withdrawal).Error
}

func (r *FundsRepository) GetWithdrawalByNo(ctx context.Context, withdrawalNo string) (*model.Withdrawal, error) {
	var withdrawal model.Withdrawal
	err := r.db.WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &withdrawal, nil
}

// UpdateWithdrawalStatus 状态 CAS 流转，completed/rejected 为终态
func (r *FundsRepository) UpdateWithdrawalStatus(ctx context.Context, tx *gorm.DB, withdrawalNo, fromStatus, toStatus, processedBy string) error {
	if !model.CanWithdrawalTransitionTo(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.WithdrawalStatusCompleted || toStatus == model.WithdrawalStatusRejected {
		now := time.Now()
		updates["processed_at"] = &now
		updates["processed_by"] = processedBy
	}

	result := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("withdrawal_no = ? AND status = ?", withdrawalNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}

	return nil
}

// ============================================================
// 冻结记录
// ============================================================

// GetActiveHold 查询用户当前生效的冻结记录，不存在返回 nil
func (r *FundsRepository) GetActiveHold(ctx context.Context, userID int64) (*model.HoldRecord, error) {
	var hold model.HoldRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&hold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hold, nil
}

// UpsertHold 先查再改或插入，保证同一用户至多一条生效冻结
func (r *FundsRepository) UpsertHold(ctx context.Context, tx *gorm.DB, userID int64, amount int64, reason string) error {
	if tx == nil {
		tx = r.db
	}

	var hold model.HoldRecord
	err := tx.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&hold).Error

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.WithContext(ctx).Create(&model.HoldRecord{
			UserID:     userID,
			HoldAmount: amount,
			Reason:     reason,
			IsActive:   true,
		}).Error
	}

	return tx.WithContext(ctx).
		Model(&model.HoldRecord{}).
		Where("id = ?", hold.ID).
		Updates(map[string]interface{}{
			"hold_amount": amount,
			"reason":      reason,
		}).Error
}

// DeactivateHold 释放冻结记录（幂等，无生效记录时不报错）
func (r *FundsRepository) DeactivateHold(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.HoldRecord{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}
