package locker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/staffhub-dev/shift-roster/backend/internal/config"
)

// AcquireResult 三态的获取结果：拿到锁、或被他人持有（带持有者），错误单独返回。
// 调用方据此区分"有人在同时操作"和"锁服务不可用"，前者不是错误
type AcquireResult struct {
	Acquired bool
	HolderID int64 // 未拿到锁时的当前持有者，0 表示持有者已不可知（锁恰好过期）
}

// AssignLocker 针对员工的咨询锁。只用于并发冲突提醒，不承担正确性，
// 容量和唯一性由数据库事务保证。锁带 TTL，持有者崩溃后自动过期
type AssignLocker struct {
	cfg    *config.Config
	client *redis.Client
}

func NewAssignLocker(cfg *config.Config, client *redis.Client) *AssignLocker {
	return &AssignLocker{
		cfg:    cfg,
		client: client,
	}
}

func lockKey(staffID int64) string {
	return fmt.Sprintf("assign_lock_%d", staffID)
}

// Acquire 非阻塞地尝试获取员工锁。未拿到锁时不等待不重试，由调用方决定如何提醒
func (l *AssignLocker) Acquire(staffID int64, actorID int64) (AcquireResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(l.cfg.Redis.OperationTimeout)*time.Second)
	defer cancel()

	ttl := time.Duration(l.cfg.AssignLock.TTL) * time.Second

	acquired, err := l.client.SetNX(ctx, lockKey(staffID), strconv.FormatInt(actorID, 10), ttl).Result()
	if err != nil {
		return AcquireResult{}, err
	}
	if acquired {
		return AcquireResult{Acquired: true}, nil
	}

	holder, err := l.client.Get(ctx, lockKey(staffID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// 锁在 SetNX 和 Get 之间恰好过期，持有者不可知
			return AcquireResult{}, nil
		}
		return AcquireResult{}, err
	}

	holderID, err := strconv.ParseInt(holder, 10, 64)
	if err != nil {
		return AcquireResult{}, nil
	}

	return AcquireResult{HolderID: holderID}, nil
}

// Release 仅当锁仍由 actorID 持有时删除。成功与否都不影响正确性，
// 即使释放失败锁也会随 TTL 自动过期
func (l *AssignLocker) Release(staffID int64, actorID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(l.cfg.Redis.OperationTimeout)*time.Second)
	defer cancel()

	holder, err := l.client.Get(ctx, lockKey(staffID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	if holder != strconv.FormatInt(actorID, 10) {
		return nil
	}

	return l.client.Del(ctx, lockKey(staffID)).Err()
}
