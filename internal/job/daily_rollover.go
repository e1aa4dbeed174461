package job

import (
	"context"
	"log"
	"time"

	"taskreward/internal/config"
	"taskreward/internal/repository"

	"gorm.io/gorm"
)

// DailyRolloverJob 日切任务：把日计数日期已过期的用户清零当日计数
// 业务路径在结算时也会懒惰归零，这里是兜底，保证状态查询不读到昨日数据
type DailyRolloverJob struct {
	db        *gorm.DB
	userRepo  *repository.UserRepository
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewDailyRolloverJob(db *gorm.DB, cfg *config.Config) *DailyRolloverJob {
	return &DailyRolloverJob{
		db:        db,
		userRepo:  repository.NewUserRepository(db),
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 200,
	}
}

func (j *DailyRolloverJob) Start(ctx context.Context) {
	log.Println("[DailyRolloverJob] 日切任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DailyRolloverJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[DailyRolloverJob] 任务停止")
			return
		case <-ticker.C:
			j.rolloverStaleUsers(ctx)
		}
	}
}

func (j *DailyRolloverJob) Stop() {
	close(j.stopCh)
}

func (j *DailyRolloverJob) rolloverStaleUsers(ctx context.Context) {
	// 统一用 UTC 日界，避免多实例时区不一致
	today := time.Now().UTC().Format("2006-01-02")

	users, err := j.userRepo.ListStaleDailyUsers(ctx, today, j.batchSize)
	if err != nil {
		log.Printf("[DailyRolloverJob] 查询待日切用户失败: %v", err)
		return
	}

	for _, user := range users {
		if err := j.userRepo.NormalizeDailyCounters(ctx, j.db, user.ID, today); err != nil {
			log.Printf("[DailyRolloverJob] 用户日切失败: userId=%d, err=%v", user.ID, err)
			continue
		}
		log.Printf("[DailyRolloverJob] 用户日切完成: userId=%d, date=%s", user.ID, today)
	}
}
