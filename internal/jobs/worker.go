package jobs

import (
	"context"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
)

// Task is one periodic sweep. Sweeps must be safe to run concurrently
// with the request path and to repeat after partial failure.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Worker drives registered tasks on fixed tickers. Each task runs in its
// own goroutine; a panicking sweep is logged and the ticker keeps going.
type Worker struct {
	log   *logger.Logger
	tasks []scheduledTask
}

type scheduledTask struct {
	task     Task
	interval time.Duration
}

func NewWorker(baseLog *logger.Logger) *Worker {
	return &Worker{log: baseLog.With("component", "JobWorker")}
}

func (w *Worker) Register(task Task, interval time.Duration) {
	w.tasks = append(w.tasks, scheduledTask{task: task, interval: interval})
}

func (w *Worker) Start(ctx context.Context) {
	for _, st := range w.tasks {
		go w.loop(ctx, st)
	}
}

func (w *Worker) loop(ctx context.Context, st scheduledTask) {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	w.log.Info("Job started", "job", st.task.Name(), "interval", st.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Job stopped", "job", st.task.Name())
			return
		case <-ticker.C:
			w.runOnce(ctx, st.task)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job panicked", "job", task.Name(), "panic", r)
		}
	}()
	if err := task.Run(ctx); err != nil {
		w.log.Warn("Job sweep failed", "job", task.Name(), "error", err)
	}
}
