package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一用户两台设备同时领取同一个任务
//
// 如果没有分布式锁：
//   goroutine1: 查余额=100 -> 扣款100 -> 余额=0   OK
//   goroutine2: 查余额=100 -> 扣款100 -> 余额=-100 超扣了！
//
// 加了分布式锁：
//   goroutine1: 获取锁 -> 查余额=100 -> 扣款100 -> 余额=0 -> 释放锁
//   goroutine2: 获取锁失败，等待... -> 获取锁 -> 查余额=0 -> 余额不足，拒绝
//
// 锁只是第一道闸，最终一致性仍由数据库的条件更新与唯一索引兜底。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】Lua 脚本保证"检查+删除"的原子性：
// 持有者 A 超时后锁被 B 拿走，A 的 Unlock 发现 value 不是自己的就不会误删
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按用户维度的账务锁
// ============================================================================

// NewClaimLock 任务领取锁（按用户维度）
// 不同用户可并发领取，同一用户串行 —— 防止双端同时领取同一任务
func NewClaimLock(client *redis.Client, userID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("task:lock:claim:user:%d", userID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewSettleLock 账务结算锁（完成任务 / 充值审批 / 提现共用）
// 这些操作都会改写同一行 user 账务字段，按用户串行即可
func NewSettleLock(client *redis.Client, userID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("task:lock:settle:user:%d", userID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
