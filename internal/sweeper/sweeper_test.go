package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/config"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
)

type fakeSource struct {
	requests  []*domain.SwapRequest
	findErr   error
	expireErr map[int64]error
	expired   []int64
}

func (s *fakeSource) FindExpired(now time.Time) ([]*domain.SwapRequest, error) {
	return s.requests, s.findErr
}

func (s *fakeSource) Expire(req *domain.SwapRequest) error {
	if err, ok := s.expireErr[req.ID]; ok {
		return err
	}
	s.expired = append(s.expired, req.ID)
	return nil
}

func TestSweepExpiresAll(t *testing.T) {
	source := &fakeSource{
		requests: []*domain.SwapRequest{
			{ID: 1, ShiftID: 10},
			{ID: 2, ShiftID: 11},
		},
	}
	sweeper := NewSweeper(&config.Config{}, source)

	sweeper.sweep(time.Now())

	if len(source.expired) != 2 {
		t.Fatalf("应处理全部过期请求，实际处理 %d 条", len(source.expired))
	}
}

func TestSweepToleratesLostRace(t *testing.T) {
	source := &fakeSource{
		requests: []*domain.SwapRequest{
			{ID: 1, ShiftID: 10},
			{ID: 2, ShiftID: 11},
			{ID: 3, ShiftID: 12},
		},
		expireErr: map[int64]error{
			2: repository.ErrRequestNotOpen,
		},
	}
	sweeper := NewSweeper(&config.Config{}, source)

	sweeper.sweep(time.Now())

	if len(source.expired) != 2 || source.expired[0] != 1 || source.expired[1] != 3 {
		t.Fatalf("竞争失败的请求应被跳过且不影响后续处理，实际处理 %v", source.expired)
	}
}

func TestSweepSkipsOnQueryError(t *testing.T) {
	source := &fakeSource{
		requests: []*domain.SwapRequest{{ID: 1, ShiftID: 10}},
		findErr:  errors.New("connection refused"),
	}
	sweeper := NewSweeper(&config.Config{}, source)

	sweeper.sweep(time.Now())

	if len(source.expired) != 0 {
		t.Fatal("查询失败时本轮不应处理任何请求")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sweeper.Interval = 1
	sweeper := NewSweeper(cfg, &fakeSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消 ctx 后 Run 应当退出")
	}
}
