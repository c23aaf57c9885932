package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/loader"
	"github.com/shaiso/Checkpoint/internal/mq"
	"github.com/shaiso/Checkpoint/internal/repo"
	"github.com/shaiso/Checkpoint/internal/report"
	"github.com/shaiso/Checkpoint/internal/runner"
	"github.com/shaiso/Checkpoint/internal/steps"
	"github.com/shaiso/Checkpoint/internal/telemetry"
)

// sinkTimeout — сколько ждать записи результатов после завершения прогона.
const sinkTimeout = 10 * time.Second

// session — всё, что живёт дольше одного прогона: executor,
// метрики, история и publisher. watch переиспользует session между тиками.
type session struct {
	opts    Options
	format  report.Format
	logger  *slog.Logger
	metrics *telemetry.Metrics
	exec    *runner.Executor
	sinks   report.MultiSink
	closers []func() error
}

// openSession подключает интеграции из opts.
// Ошибка подключения к БД или брокеру завершает команду.
func openSession(ctx context.Context, opts Options, logger *slog.Logger) (*session, error) {
	format, err := report.ParseFormat(opts.ReportFormat)
	if err != nil {
		return nil, err
	}

	s := &session{
		opts:    opts,
		format:  format,
		logger:  logger,
		metrics: telemetry.NewMetrics(),
	}

	if opts.HistoryDSN != "" {
		store, err := repo.Open(ctx, opts.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		s.sinks = append(s.sinks, store)
		s.closers = append(s.closers, store.Close)
		logger.Info("run history enabled")
	}

	if opts.AMQPURL != "" {
		conn, err := mq.Dial(ctx, mq.Config{URL: opts.AMQPURL, Logger: logger})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		s.closers = append(s.closers, conn.Close)

		if err := mq.SetupTopology(ctx, conn); err != nil {
			s.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		s.sinks = append(s.sinks, mq.NewPublisher(conn, logger))
		logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())
	}

	if opts.MetricsAddr != "" {
		go func() {
			if err := s.metrics.Serve(ctx, opts.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	httpCfg := steps.DefaultHTTPConfig()
	httpCfg.ValidateSSL = !opts.Insecure
	httpCfg.Logger = logger

	s.exec = runner.New(runner.Config{
		Transport: steps.NewHTTPTransport(httpCfg),
		Logger:    logger,
		Metrics:   s.metrics,
	})

	return s, nil
}

// Close закрывает интеграции в обратном порядке.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// runOnce загружает сценарии, выполняет их и выводит отчёт.
// Возвращает ErrScenariosFailed, если хотя бы один сценарий не прошёл.
func (s *session) runOnce(ctx context.Context, paths []string, w io.Writer) error {
	loaded, err := loader.LoadAll(paths, s.opts.LoadOptions())
	if err != nil {
		return err
	}
	if len(loaded) == 0 {
		return ErrNoScenarios
	}

	results := make([]*domain.ScenarioResult, len(loaded))
	var (
		scenarios []*domain.Scenario
		positions []int
	)
	for i, l := range loaded {
		if l.Err != nil {
			s.logger.Error("failed to load scenario", "path", l.Path, "error", l.Err)
			results[i] = domain.NewLoadFailure(l.Path, l.Err)
			continue
		}
		scenarios = append(scenarios, l.Scenario)
		positions = append(positions, i)
	}

	s.logger.Info("running scenarios", "count", len(scenarios), "workers", s.opts.Workers)

	executed := runner.NewPool(s.exec, s.opts.Workers).Run(ctx, scenarios)
	for j, res := range executed {
		results[positions[j]] = res
	}

	if err := s.render(w, results); err != nil {
		return err
	}

	if len(s.sinks) > 0 {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()
		if err := report.RecordAll(sinkCtx, s.sinks, results); err != nil {
			s.logger.Warn("failed to record results", "error", err)
		}
	}

	if report.ExitCode(results) != 0 {
		return ErrScenariosFailed
	}
	return nil
}

// render выводит отчёт в w и, если задан --report-dir, в файл.
func (s *session) render(w io.Writer, results []*domain.ScenarioResult) error {
	if s.opts.ReportDir != "" {
		path, err := report.WriteFile(s.opts.ReportDir, s.format, results)
		if err != nil {
			return err
		}
		s.logger.Info("report written", "path", path)
		return report.NewTextRenderer(s.opts.Verbose).Render(w, results)
	}

	if s.format == report.FormatText {
		return report.NewTextRenderer(s.opts.Verbose).Render(w, results)
	}
	return report.Render(w, s.format, results)
}

// newLogger создаёт логгер процесса.
func newLogger(verbose bool) *slog.Logger {
	if verbose {
		return telemetry.SetupVerboseLogger()
	}
	return telemetry.SetupLogger()
}

// pathsOrDefault возвращает пути из аргументов или текущую директорию.
func pathsOrDefault(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}
