package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"taskreward/internal/config"
	"taskreward/internal/model"
	"taskreward/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				TaskEvents:   "task_events",
				LedgerEvents: "ledger_events",
			},
		},
		Business: config.BusinessConfig{
			DailyCampaignLimit: 30,
			DepositRedirect:    "/deposit",
			MaxRetryCount:      3,
		},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewFullTestDB(t)
}

var seedSeq int64

// seedUser 补齐不可空字段后落库，唯一性字段按序号生成
func seedUser(t *testing.T, db *gorm.DB, u *model.User) *model.User {
	t.Helper()
	seq := atomic.AddInt64(&seedSeq, 1)
	if u.Username == "" {
		u.Username = fmt.Sprintf("user-%s-%d", t.Name(), seq)
	}
	if u.Password == "" {
		u.Password = "$2a$10$placeholderplaceholderplaceholde"
	}
	if u.MembershipID == "" {
		u.MembershipID = fmt.Sprintf("%d", 10000+seq)
	}
	if u.ReferralCode == "" {
		u.ReferralCode = fmt.Sprintf("REF%06d", seq)
	}
	if u.Level == "" {
		u.Level = model.LevelBronze
	}
	if len(u.CampaignSet) == 0 {
		u.CampaignSet = model.IntList{1}
	}
	if u.DailyCountDate == "" {
		u.DailyCountDate = time.Now().UTC().Format("2006-01-02")
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedTask(t *testing.T, db *gorm.DB, task *model.CustomerTask) *model.CustomerTask {
	t.Helper()
	if task.Status == "" {
		task.Status = model.TaskStatusActive
	}
	if task.TaskNumber == 0 {
		task.TaskNumber = 1
	}
	if task.CampaignID == 0 {
		task.CampaignID = 1
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func seedCampaign(t *testing.T, db *gorm.DB, c *model.Campaign) *model.Campaign {
	t.Helper()
	if c.Title == "" {
		c.Title = "测试任务"
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func getUser(t *testing.T, db *gorm.DB, id int64) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, db.First(&u, id).Error)
	return &u
}

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&n).Error)
	return n
}
