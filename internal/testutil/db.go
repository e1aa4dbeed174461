package testutil

import (
	"fmt"
	"testing"

	"taskreward/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB 创建内存 SQLite 测试库，按测试名隔离，测试结束自动关闭
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试库失败: %v", err)
	}

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("迁移测试库失败: %v", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// NewFullTestDB 迁移全部业务表
func NewFullTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return NewTestDB(t,
		&model.User{},
		&model.Campaign{},
		&model.CustomerTask{},
		&model.CampaignClaim{},
		&model.Transaction{},
		&model.Deposit{},
		&model.Withdrawal{},
		&model.HoldRecord{},
		&model.OutboxMessage{},
	)
}
