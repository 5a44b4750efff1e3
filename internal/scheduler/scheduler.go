package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job интерфейс для периодических задач
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncJob оборачивает функцию в задачу
func NewFuncJob(name string, fn func(ctx context.Context) error) Job {
	return &funcJob{name: name, fn: fn}
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// Scheduler управляет запуском периодических задач
type Scheduler struct {
	cron   *gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []Job
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	// задача не запускается повторно, пока не завершился предыдущий запуск
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob регистрирует задачу с интервалом запуска
func (s *Scheduler) AddJob(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("некорректный интервал задачи %s: %s", job.Name(), interval)
	}

	_, err := s.cron.Every(interval).Tag(job.Name()).Do(func() {
		s.run(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("ошибка регистрации задачи %s: %w", job.Name(), err)
	}

	s.jobs = append(s.jobs, job)
	return nil
}

// Start запускает планировщик без блокировки
func (s *Scheduler) Start() {
	s.logger.Info("запуск планировщика задач", zap.Int("jobs_count", len(s.jobs)))
	s.cron.StartAsync()
}

// Stop останавливает планировщик и отменяет выполняющиеся задачи
func (s *Scheduler) Stop() {
	s.logger.Info("остановка планировщика задач")
	s.cancel()
	s.cron.Stop()
}

// RunNow выполняет все задачи синхронно
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, job := range s.jobs {
		s.run(ctx, job)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	s.logger.Debug("запуск задачи", zap.String("job", job.Name()))

	if err := job.Run(ctx); err != nil {
		s.logger.Error("ошибка выполнения задачи",
			zap.String("job", job.Name()),
			zap.Error(err))
		return
	}

	s.logger.Debug("задача выполнена",
		zap.String("job", job.Name()),
		zap.Duration("duration", time.Since(start)))
}
