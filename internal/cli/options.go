package cli

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Checkpoint/internal/loader"
	"github.com/shaiso/Checkpoint/internal/report"
	"github.com/shaiso/Checkpoint/internal/runner"
)

// Переменные окружения процесса. Флаги имеют приоритет.
const (
	EnvHistoryDSN  = "CHECKPOINT_HISTORY_DSN"
	EnvAMQPURL     = "CHECKPOINT_AMQP_URL"
	EnvMetricsAddr = "CHECKPOINT_METRICS_ADDR"
	EnvWorkers     = "CHECKPOINT_WORKERS"
)

// Options — параметры запуска сценариев.
type Options struct {
	// Отбор и переопределения.
	Filter  string
	Tags    []string
	BaseURL string
	Timeout time.Duration

	// Вывод.
	Verbose      bool
	ReportFormat string
	ReportDir    string

	// Выполнение.
	Workers  int
	Insecure bool

	// Интеграции.
	HistoryDSN  string
	AMQPURL     string
	MetricsAddr string
}

// DefaultOptions возвращает значения по умолчанию с учётом окружения.
func DefaultOptions() Options {
	opts := Options{
		ReportFormat: string(report.FormatText),
		Workers:      runner.DefaultWorkers,
		HistoryDSN:   os.Getenv(EnvHistoryDSN),
		AMQPURL:      os.Getenv(EnvAMQPURL),
		MetricsAddr:  os.Getenv(EnvMetricsAddr),
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Workers = n
		}
	}
	return opts
}

// LoadOptions возвращает параметры загрузчика.
func (o Options) LoadOptions() loader.Options {
	return loader.Options{
		Filter: loader.Filter{Name: o.Filter, Tags: o.Tags},
		Overrides: loader.Overrides{
			BaseURL: o.BaseURL,
			Timeout: o.Timeout,
		},
	}
}

// bindSelectFlags добавляет флаги отбора сценариев.
func bindSelectFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVar(&opts.Filter, "filter", opts.Filter, "Run only scenarios whose name contains this text (case-insensitive)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", opts.Tags, "Run only scenarios with any of these tags (repeatable)")
}

// bindRunFlags добавляет флаги выполнения (run и watch).
func bindRunFlags(cmd *cobra.Command, opts *Options) {
	bindSelectFlags(cmd, opts)

	f := cmd.Flags()
	f.StringVar(&opts.BaseURL, "base-url", opts.BaseURL, "Override config.base_url of every scenario")
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Override config.timeout of every scenario (e.g. 10s)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Debug logging and request/response details for failed steps")
	f.StringVar(&opts.ReportFormat, "report-format", opts.ReportFormat, "Report format: json, yaml or text")
	f.StringVar(&opts.ReportDir, "report-dir", opts.ReportDir, "Write checkpoint-report.<ext> into this directory")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "Scenarios executed concurrently (env "+EnvWorkers+")")
	f.BoolVar(&opts.Insecure, "insecure", opts.Insecure, "Skip TLS certificate verification")
	f.StringVar(&opts.HistoryDSN, "history-dsn", opts.HistoryDSN, "Store run history: postgres://... or a SQLite file path (env "+EnvHistoryDSN+")")
	f.StringVar(&opts.AMQPURL, "amqp-url", opts.AMQPURL, "Publish results to RabbitMQ (env "+EnvAMQPURL+")")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr, "Serve Prometheus /metrics on this address (env "+EnvMetricsAddr+")")
}
