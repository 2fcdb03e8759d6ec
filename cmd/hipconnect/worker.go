package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/pysugar/hipchat-connect/internal/notify"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver queued notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		queue := a.cfg.Notifications.Queue
		srv := asynq.NewServer(a.redisOpt(), asynq.Config{
			Concurrency:    workerConcurrency,
			Queues:         map[string]int{queue: 1},
			RetryDelayFunc: notify.RetryDelay,
			Logger:         asynqLogger{a.log.With("component", "asynq")},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				a.log.Error("notification task failed", "task_type", task.Type(), "error", err)
			}),
		})

		mux := asynq.NewServeMux()
		notify.NewHandler(a.notifier(a.hipchatClient()), a.log).Register(mux)

		a.log.Info("notification worker starting", "queue", queue, "redis", a.cfg.Redis.Addr)
		// Run blocks until SIGTERM or SIGINT.
		return srv.Run(mux)
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "number of concurrent deliveries")
}

// asynqLogger adapts slog to asynq's logger interface.
type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
