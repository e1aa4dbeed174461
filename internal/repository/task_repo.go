package repository

import (
	"context"
	"errors"
	"time"

	"taskreward/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTaskNotFound      = errors.New("任务不存在")
	ErrTaskStatusInvalid = errors.New("任务状态不合法")
	ErrClaimExists       = errors.New("任务已领取，请勿重复操作")
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, tx *gorm.DB, task *model.CustomerTask) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(task).Error
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID int64) (*model.CustomerTask, error) {
	var task model.CustomerTask
	err := r.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, taskID int64) (*model.CustomerTask, error) {
	var task model.CustomerTask
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", taskID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateStatus 状态 CAS 流转，非法流转或状态已被并发改走都报错
func (r *TaskRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, taskID int64, fromStatus, toStatus string) error {
	if !model.CanTaskTransitionTo(fromStatus, toStatus) {
		return ErrTaskStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.CustomerTask{}).
		Where("id = ? AND status = ?", taskID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTaskStatusInvalid
	}

	return nil
}

func (r *TaskRepository) ListByCustomer(ctx context.Context, customerID int64, status string, page, pageSize int) ([]*model.CustomerTask, int64, error) {
	var tasks []*model.CustomerTask
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CustomerTask{}).Where("customer_id = ?", customerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("task_number ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error

	return tasks, total, err
}

// ============================================================
// 领取记录
// ============================================================

// CreateClaim 插入领取记录
// 唯一索引 (customer_id, task_id, reset_set_number=0) 兜底并发重复领取
func (r *TaskRepository) CreateClaim(ctx context.Context, tx *gorm.DB, claim *model.CampaignClaim) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrClaimExists
		}
		return err
	}
	return nil
}

// GetLiveClaim 查询在役领取记录（未被组重置标记的那条），不存在返回 nil
func (r *TaskRepository) GetLiveClaim(ctx context.Context, customerID, taskID int64) (*model.CampaignClaim, error) {
	var claim model.CampaignClaim
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND task_id = ? AND reset_set_number = 0", customerID, taskID).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &claim, nil
}

// StampClaimsReset 组重置：在役记录统一打上新组号与重置时间，
// 不删历史，同一任务在新组可重新领取
func (r *TaskRepository) StampClaimsReset(ctx context.Context, tx *gorm.DB, customerID int64, newSetNumber int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.CampaignClaim{}).
		Where("customer_id = ? AND reset_set_number = 0", customerID).
		Updates(map[string]interface{}{
			"reset_set_number": newSetNumber,
			"reset_at":         time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *TaskRepository) CountLiveClaims(ctx context.Context, customerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CampaignClaim{}).
		Where("customer_id = ? AND reset_set_number = 0", customerID).
		Count(&count).Error
	return count, err
}
