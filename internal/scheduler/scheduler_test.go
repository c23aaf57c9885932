package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 9 * * 1-5", false},
		{"CRON_TZ=Europe/Moscow 0 9 * * *", false},
		{"@hourly", false},
		{"@every 10m", false},
		{"90s", false},
		{"", true},
		{"500ms", true},
		{"* * *", true},
		{"not a schedule", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSchedule) {
					t.Errorf("expected ErrInvalidSchedule, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2025, 3, 10, 10, 7, 30, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/5 * * * *", time.Date(2025, 3, 10, 10, 10, 0, 0, time.UTC)},
		{"@hourly", time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)},
		{"2m", time.Date(2025, 3, 10, 10, 9, 30, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NextRun(tt.expr, from)
			if err != nil {
				t.Fatalf("NextRun: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

// everyInterval — расписание с интервалом меньше секунды для тестов.
type everyInterval time.Duration

func (e everyInterval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	cfg.Schedule = "@hourly"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.schedule = everyInterval(10 * time.Millisecond)
	return s
}

func TestScheduler_MaxRuns(t *testing.T) {
	var calls atomic.Int32
	s := newTestScheduler(t, Config{
		MaxRuns:        3,
		RunImmediately: true,
		Job: func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				return errors.New("scenario failed")
			}
			return nil
		},
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("job called %d times, want 3", got)
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	s := newTestScheduler(t, Config{
		Job: func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				cancel()
			}
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if calls.Load() != 2 {
		t.Errorf("job called %d times, want 2", calls.Load())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Schedule: "bad", Job: func(context.Context) error { return nil }}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
	if _, err := New(Config{Schedule: "@hourly"}); err == nil {
		t.Error("expected error for missing job")
	}
}
