package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/monitoring"
	"dropmail/backend/internal/pool"
	"dropmail/backend/internal/storage"
)

// ErrSweepInProgress 表示已有一轮清理在执行
//
// 调用方（定时器或管理接口）应跳过本轮而非排队等待。
var ErrSweepInProgress = errors.New("cleanup sweep already in progress")

// Sweeper 邮件保留清理器
//
// 每轮按用户切分任务：先删除超出保留时长的邮件，再将每个邮箱
// 裁剪到生效的数量上限。单个用户的失败不影响其他用户。
type Sweeper struct {
	store   storage.Store
	metrics *monitoring.Metrics
	log     *zap.Logger
	workers int

	running atomic.Bool
}

// NewSweeper 创建保留清理器
func NewSweeper(store storage.Store, metrics *monitoring.Metrics, log *zap.Logger, workers int) *Sweeper {
	if workers <= 0 {
		workers = 4
	}
	return &Sweeper{
		store:   store,
		metrics: metrics,
		log:     log,
		workers: workers,
	}
}

// Run 执行一轮完整清理，返回本轮删除的邮件总数
//
// 同一时刻只允许一轮在执行，重入时返回 ErrSweepInProgress。
// ctx 取消后不再派发新用户，已在执行的用户任务完成后退出。
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := time.Now()

	settings, err := s.store.GetSystemSettings()
	if err != nil {
		return 0, fmt.Errorf("load system settings: %w", err)
	}

	users, err := s.store.ListUsers()
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	workerPool := pool.NewWorkerPool(s.workers, len(users)+1)
	workerPool.Start(ctx)

	var (
		deleted atomic.Int64
		failed  atomic.Int64
	)
	for i := range users {
		if ctx.Err() != nil {
			break
		}
		user := users[i]
		workerPool.Submit(func() {
			n, err := s.sweepUser(ctx, &user, settings)
			deleted.Add(n)
			if err != nil {
				failed.Add(1)
				s.log.Error("cleanup failed for user",
					zap.String("user_id", user.ID),
					zap.Error(err),
				)
			}
		})
	}
	// Stop 关闭队列并等待在途任务结束；ctx 取消时剩余任务被丢弃
	workerPool.Stop()

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.SweepDeletedTotal.Add(float64(deleted.Load()))
		s.metrics.SweepDuration.Observe(elapsed.Seconds())
	}
	s.log.Info("cleanup sweep finished",
		zap.Int("users", len(users)),
		zap.Int64("deleted", deleted.Load()),
		zap.Int64("failed_users", failed.Load()),
		zap.Duration("elapsed", elapsed),
	)

	if err := ctx.Err(); err != nil {
		return deleted.Load(), err
	}
	return deleted.Load(), nil
}

// sweepUser 清理单个用户名下的全部邮箱
//
// 先按保留时长删除过期邮件，再在启用淘汰策略时按数量上限裁剪；
// 两阶段都基于条件删除，与并发投递互不干扰。
func (s *Sweeper) sweepUser(ctx context.Context, user *domain.User, settings *domain.SystemSettings) (int64, error) {
	retention := user.EffectiveRetentionHours(settings.DefaultRetentionHours)
	maxEmails := user.EffectiveMaxEmails(settings.MaxEmailsPerInbox)
	cutoff := time.Now().UTC().Add(-time.Duration(retention) * time.Hour)

	inboxes, err := s.store.ListInboxesByUserID(user.ID)
	if err != nil {
		return 0, fmt.Errorf("list inboxes: %w", err)
	}

	var total int64
	for i := range inboxes {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		inbox := &inboxes[i]

		expired, err := s.store.DeleteEmailsBefore(inbox.ID, cutoff)
		if err != nil {
			return total, fmt.Errorf("delete expired emails in inbox %s: %w", inbox.ID, err)
		}
		total += expired

		var trimmed int64
		if settings.DeleteOldOnLimit {
			trimmed, err = s.store.TrimEmailsToLimit(inbox.ID, maxEmails)
			if err != nil {
				return total, fmt.Errorf("trim inbox %s: %w", inbox.ID, err)
			}
			total += trimmed
		}

		if expired > 0 || trimmed > 0 {
			s.log.Debug("inbox cleaned",
				zap.String("inbox_id", inbox.ID),
				zap.Int64("expired", expired),
				zap.Int64("trimmed", trimmed),
			)
		}
	}
	return total, nil
}
