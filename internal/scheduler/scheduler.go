package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job — периодическая работа (обычно прогон набора сценариев).
type Job func(ctx context.Context) error

// Config — конфигурация Scheduler.
type Config struct {
	// Schedule — cron-выражение, дескриптор или интервал.
	Schedule string

	// Job — выполняемая работа.
	Job Job

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// MaxRuns — остановиться после N запусков (0 — без ограничения).
	MaxRuns int

	// RunImmediately — первый запуск сразу, не дожидаясь расписания.
	RunImmediately bool
}

// Scheduler запускает Job по расписанию до отмены контекста.
//
// Запуски не перекрываются: если Job работает дольше интервала,
// пропущенные тики не догоняются, следующее время считается
// от момента завершения.
type Scheduler struct {
	expr      string
	schedule  cron.Schedule
	job       Job
	logger    *slog.Logger
	maxRuns   int
	immediate bool
}

// New создаёт Scheduler. Возвращает ErrInvalidSchedule для некорректного расписания.
func New(cfg Config) (*Scheduler, error) {
	schedule, err := Parse(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Job == nil {
		return nil, fmt.Errorf("scheduler: job is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		expr:      cfg.Schedule,
		schedule:  schedule,
		job:       cfg.Job,
		logger:    cfg.Logger,
		maxRuns:   cfg.MaxRuns,
		immediate: cfg.RunImmediately,
	}, nil
}

// Run блокируется до отмены ctx или достижения MaxRuns.
// Ошибки Job логируются и не останавливают цикл.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedule", s.expr)

	runs := 0
	if s.immediate {
		s.Tick(ctx)
		runs++
	}

	for s.maxRuns <= 0 || runs < s.maxRuns {
		next := s.schedule.Next(time.Now())
		s.logger.Debug("next run scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped", "runs", runs)
			return nil
		case <-timer.C:
		}

		s.Tick(ctx)
		runs++
	}

	s.logger.Info("scheduler finished", "runs", runs)
	return nil
}

// Tick выполняет Job один раз.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	err := s.job(ctx)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
		return err
	}
	s.logger.Info("scheduled run completed", "elapsed", time.Since(start))
	return nil
}
