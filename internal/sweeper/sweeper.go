package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/config"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
)

// Source 由状态机实现，提供过期请求的查询和单条过期处理
type Source interface {
	FindExpired(now time.Time) ([]*domain.SwapRequest, error)
	Expire(req *domain.SwapRequest) error
}

// Sweeper 周期性地把超过过期时间仍未被接单的放班请求置为过期。
// 单工作协程，不做并行处理
type Sweeper struct {
	cfg    *config.Config
	source Source
}

func NewSweeper(cfg *config.Config, source Source) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		source: source,
	}
}

// Run 阻塞运行，直到 ctx 被取消
func (s *Sweeper) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Sweeper.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("过期清扫已启动", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("过期清扫已停止")
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	requests, err := s.source.FindExpired(now)
	if err != nil {
		slog.Error("查询过期请求失败", "error", err)
		return
	}

	for _, req := range requests {
		if err := s.source.Expire(req); err != nil {
			// 查出来之后被并发接单了，跳过即可
			if errors.Is(err, repository.ErrRequestNotOpen) {
				slog.Info("请求在清扫前已被处理", "requestID", req.ID)
				continue
			}
			slog.Error("过期请求处理失败", "requestID", req.ID, "error", err)
			continue
		}
		slog.Info("放班请求已过期", "requestID", req.ID, "shiftID", req.ShiftID)
	}
}
