package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/subwatch/internal/model"
	"github.com/hitoshi/subwatch/internal/repository"
)

// RunExecutor はスケジューラーが実行を委譲するインターフェース。
type RunExecutor interface {
	Execute(ctx context.Context, monitorID string) (*model.RunResult, error)
}

// Scheduler はアクティブなモニターをチェック間隔ごとに実行する。
// スケジュール表はメモリ上にのみ存在し、再起動時はInitializeSchedulesで
// データベースから再構築する。
type Scheduler struct {
	exec     RunExecutor
	monitors repository.MonitorRepository
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*scheduleEntry
}

type scheduleEntry struct {
	interval time.Duration
	cancel   context.CancelFunc
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(exec RunExecutor, monitors repository.MonitorRepository, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		exec:     exec,
		monitors: monitors,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*scheduleEntry),
	}
}

// InitializeSchedules はアクティブな全モニターのスケジュールを登録する。
// 起動時とReddit認証情報の設定後に呼び出す。
func (s *Scheduler) InitializeSchedules(ctx context.Context) error {
	mons, err := s.monitors.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("アクティブモニターの取得に失敗しました: %w", err)
	}
	for _, mon := range mons {
		s.Schedule(mon)
	}
	s.logger.Info("スケジュールを初期化しました", slog.Int("count", len(mons)))
	return nil
}

// Schedule はモニターのスケジュールを登録する。
// 登録済みの場合は古いスケジュールを停止して置き換える。
func (s *Scheduler) Schedule(mon *model.Monitor) {
	interval := time.Duration(mon.CheckInterval) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[mon.ID]; ok {
		old.cancel()
	}

	entryCtx, entryCancel := context.WithCancel(s.ctx)
	s.entries[mon.ID] = &scheduleEntry{interval: interval, cancel: entryCancel}

	s.wg.Add(1)
	go s.loop(entryCtx, mon.ID, interval)

	s.logger.Info("モニターをスケジュールしました",
		slog.String("monitor_id", mon.ID),
		slog.Int("interval_min", mon.CheckInterval),
	)
}

// Unschedule はモニターのスケジュールを解除する。未登録の場合は何もしない。
func (s *Scheduler) Unschedule(monitorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[monitorID]
	if !ok {
		return
	}
	entry.cancel()
	delete(s.entries, monitorID)

	s.logger.Info("モニターのスケジュールを解除しました",
		slog.String("monitor_id", monitorID),
	)
}

// IsScheduled はモニターがスケジュール済みかを返す。
func (s *Scheduler) IsScheduled(monitorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[monitorID]
	return ok
}

// ScheduledCount は登録中のスケジュール数を返す。
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ListScheduled は登録中のモニターID一覧をソート済みで返す。
func (s *Scheduler) ListScheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop は全スケジュールを停止し、進行中のループの終了を待つ。
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, monitorID string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, monitorID)
		}
	}
}

// runOnce はスケジュールされた1回の実行を行う。
// 前回の実行が進行中の場合はこの周期をスキップする。
func (s *Scheduler) runOnce(ctx context.Context, monitorID string) {
	_, err := s.exec.Execute(ctx, monitorID)
	if err == nil {
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeRunInProgress {
		s.logger.Info("前回の実行が進行中のためスキップします",
			slog.String("monitor_id", monitorID),
		)
		return
	}

	s.logger.Error("スケジュール実行に失敗しました",
		slog.String("monitor_id", monitorID),
		slog.String("error", err.Error()),
	)
}
