// Copyright (c) 2026 AetherCore contributors.

/*
Package scheduler provides time-based cooperative task execution in a
single process. A Scheduler runs one-shot and recurring callbacks on their
own goroutines, coordinating via channels and time.Timer/time.Ticker rather
than a separate cooperative-task runtime — this is the one concurrency
model the whole engine uses, applied here to time-based work.
*/
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Callback is the work a scheduled task performs. A returned error is
// caught and logged; for a recurring task the loop continues to the next
// interval regardless.
type Callback func(ctx context.Context) error

// TaskInfo is a diagnostic snapshot of one active task.
type TaskInfo struct {
	ID        string
	Name      string
	Recurring bool
	NextRun   time.Time
}

type task struct {
	id        string
	name      string
	recurring bool
	cancel    context.CancelFunc
	nextRun   time.Time
	mu        sync.Mutex
}

// Scheduler runs scheduled callbacks until [Scheduler.Shutdown] is called.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
	logger *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New constructs a Scheduler. Call [Scheduler.Shutdown] to stop it and
// await every in-flight task's cleanup.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:      make(map[string]*task),
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// ScheduleOnce runs cb once after delay and then removes the task from the
// active registry.
func (s *Scheduler) ScheduleOnce(cb Callback, delay time.Duration, name string) string {
	t := s.newTask(name, false, time.Now().Add(delay))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-t.ctxDone():
		case <-timer.C:
			s.runCallback(t, cb)
		}
		s.removeTask(t.id)
	}()

	return t.id
}

// ScheduleRecurring runs cb every interval, starting after initialDelay
// (or immediately after the first interval if initialDelay is zero).
// Cancellation is observed at the next sleep boundary: a callback already
// in flight is allowed to finish.
func (s *Scheduler) ScheduleRecurring(cb Callback, interval time.Duration, name string, initialDelay time.Duration) string {
	first := initialDelay
	if first <= 0 {
		first = interval
	}
	t := s.newTask(name, true, time.Now().Add(first))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(first)
		defer timer.Stop()

		for {
			select {
			case <-t.ctxDone():
				s.removeTask(t.id)
				return
			case <-timer.C:
				s.runCallback(t, cb)
				t.mu.Lock()
				t.nextRun = time.Now().Add(interval)
				t.mu.Unlock()
				timer.Reset(interval)
			}
		}
	}()

	return t.id
}

// Cancel stops the task identified by taskID. It returns false if no such
// task is currently active.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// ListActive returns a diagnostic snapshot of every task still registered.
func (s *Scheduler) ListActive() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		t.mu.Lock()
		out = append(out, TaskInfo{
			ID:        t.id,
			Name:      t.name,
			Recurring: t.recurring,
			NextRun:   t.nextRun,
		})
		t.mu.Unlock()
	}
	return out
}

// Shutdown cancels every active task and blocks until each one's goroutine
// has observed cancellation and exited.
func (s *Scheduler) Shutdown() {
	s.cancelBase()
	s.wg.Wait()
}

func (s *Scheduler) newTask(name string, recurring bool, nextRun time.Time) *taskHandle {
	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &task{
		id:        uuid.NewString(),
		name:      name,
		recurring: recurring,
		cancel:    cancel,
		nextRun:   nextRun,
	}
	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()
	return &taskHandle{task: t, ctx: ctx}
}

func (s *Scheduler) removeTask(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

func (s *Scheduler) runCallback(t *taskHandle, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: task panicked",
				slog.String("task_id", t.id), slog.String("name", t.name), slog.Any("recovered", r))
		}
	}()
	if err := cb(t.ctx); err != nil {
		s.logger.Error("scheduler: task failed",
			slog.String("task_id", t.id), slog.String("name", t.name), slog.Any("error", err))
	}
}

// taskHandle pairs a task with the context its goroutine should observe
// for cancellation, without exposing ctx through the diagnostic TaskInfo.
type taskHandle struct {
	*task
	ctx context.Context
}

func (h *taskHandle) ctxDone() <-chan struct{} {
	return h.ctx.Done()
}
