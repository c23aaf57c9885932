// Package scheduler повторяет прогон сценариев по расписанию
// (команда checkpoint watch).
//
// Структура:
//   - cron.go      — разбор расписаний и вычисление следующего времени
//   - scheduler.go — цикл запусков до отмены контекста
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: "*/5 * * * *",
//	    Job:      runAll,
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return sched.Run(ctx)
package scheduler
