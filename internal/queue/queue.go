// Package queue implements the durable at-least-once task queue. Tasks are
// persisted as typed JSON payloads, executed by handlers resolved from a
// static registry, and retried with a bounded attempt budget before being
// parked as failed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage"
	"github.com/vietddude/recourse/internal/metrics"
)

// Handler executes one task type. Payloads may be redelivered: handlers must
// tolerate seeing the same payload twice.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Registry maps task types to handlers. Registration happens once at startup;
// after that the registry is read-only, so workers read it without locking.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task type. Registering a duplicate type or
// registering after the queue started panics: both are wiring bugs, not
// runtime conditions.
func (r *Registry) Register(taskType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("queue: registry sealed, register handlers before starting workers")
	}
	if _, dup := r.handlers[taskType]; dup {
		panic(fmt.Sprintf("queue: duplicate handler for task type %q", taskType))
	}
	r.handlers[taskType] = h
}

func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) lookup(taskType string) (Handler, bool) {
	h, ok := r.handlers[taskType]
	return h, ok
}

const defaultMaxRetries = 3

// Queue coordinates durable task execution over a TaskRepository.
type Queue struct {
	tasks      storage.TaskRepository
	reg        *Registry
	maxRetries int
	log        *slog.Logger
}

func New(tasks storage.TaskRepository, reg *Registry, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		tasks:      tasks,
		reg:        reg,
		maxRetries: defaultMaxRetries,
		log:        log,
	}
}

// Enqueue persists a pending task and returns its ID. payload must marshal to
// JSON; enqueue fails before touching storage otherwise.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	if _, ok := q.reg.lookup(taskType); !ok {
		return "", fmt.Errorf("enqueue %s: no handler registered", taskType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: marshal payload: %w", taskType, err)
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Payload:   raw,
		Status:    domain.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.tasks.Create(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	q.log.Debug("task enqueued", "task_id", task.ID, "task_type", taskType)
	return task.ID, nil
}

// ProcessPending executes up to limit pending tasks in FIFO order on the
// calling goroutine. Intended for the single-pass scheduled mode; concurrent
// consumption goes through RunWorkers.
func (q *Queue) ProcessPending(ctx context.Context, limit int) (int, error) {
	q.reg.seal()

	batch, err := q.tasks.DequeueBatch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("dequeue batch: %w", err)
	}

	processed := 0
	for _, task := range batch {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		q.executeTask(ctx, task)
		processed++
	}
	return processed, nil
}

// RunWorkers consumes the queue with n parallel workers until ctx is
// cancelled. Each worker claims tasks one at a time under a row-level claim,
// so redeliveries only come from crashes, never from racing workers.
func (q *Queue) RunWorkers(ctx context.Context, n int) {
	q.reg.seal()

	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			q.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (q *Queue) workerLoop(ctx context.Context, worker int) {
	idle := time.NewTicker(time.Second)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := q.tasks.ClaimNext(ctx)
		if err != nil {
			q.log.Error("claim next task", "worker", worker, "error", err)
		} else if task != nil {
			q.runClaimed(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

// executeTask drives one pending task through the full lifecycle: mark
// processing, run the handler, then settle terminal or requeued state.
func (q *Queue) executeTask(ctx context.Context, task *domain.Task) {
	if err := q.tasks.MarkProcessing(ctx, task.ID); err != nil {
		q.log.Error("mark task processing", "task_id", task.ID, "error", err)
		return
	}
	q.runClaimed(ctx, task)
}

// runClaimed executes a task already in processing state.
func (q *Queue) runClaimed(ctx context.Context, task *domain.Task) {
	handler, ok := q.reg.lookup(task.Type)
	if !ok {
		// No handler means a deploy removed the type while tasks were still
		// queued. Park the task instead of spinning on it.
		q.settleFailure(ctx, task, fmt.Errorf("no handler registered for task type %q", task.Type))
		return
	}

	err := q.runHandler(ctx, handler, task)
	if err == nil {
		if err := q.tasks.MarkCompleted(ctx, task.ID); err != nil {
			q.log.Error("mark task completed", "task_id", task.ID, "error", err)
			return
		}
		metrics.TasksProcessed.WithLabelValues(task.Type, "completed").Inc()
		q.log.Info("task completed", "task_id", task.ID, "task_type", task.Type, "attempts", task.Attempts)
		return
	}

	q.settleFailure(ctx, task, err)
}

// runHandler isolates handler panics: a panicking handler fails its task, it
// does not take the worker down.
func (q *Queue) runHandler(ctx context.Context, handler Handler, task *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, task.Payload)
}

func (q *Queue) settleFailure(ctx context.Context, task *domain.Task, cause error) {
	attempts := task.Attempts + 1
	lastError := cause.Error()

	if attempts >= q.maxRetries {
		if err := q.tasks.MarkFailed(ctx, task.ID, attempts, lastError); err != nil {
			q.log.Error("mark task failed", "task_id", task.ID, "error", err)
			return
		}
		metrics.TasksProcessed.WithLabelValues(task.Type, "failed").Inc()
		q.log.Error("task failed permanently",
			"task_id", task.ID, "task_type", task.Type, "attempts", attempts, "error", lastError)
		return
	}

	if err := q.tasks.Requeue(ctx, task.ID, attempts, lastError); err != nil {
		q.log.Error("requeue task", "task_id", task.ID, "error", err)
		return
	}
	metrics.TasksProcessed.WithLabelValues(task.Type, "retried").Inc()
	q.log.Warn("task failed, requeued",
		"task_id", task.ID, "task_type", task.Type, "attempts", attempts, "error", lastError)
}

// ReclaimStale returns tasks stuck in processing beyond lease to pending.
// Run it before each scheduled pass so crashed executions get redelivered.
func (q *Queue) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	n, err := q.tasks.ReclaimStale(ctx, lease)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	if n > 0 {
		metrics.TasksReclaimed.Add(float64(n))
		q.log.Warn("reclaimed stale tasks", "count", n, "lease", lease)
	}
	return n, nil
}

// Stats snapshots queue depth per status and refreshes the depth gauges.
func (q *Queue) Stats(ctx context.Context) (map[domain.TaskStatus]int, error) {
	counts, err := q.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	for _, status := range []domain.TaskStatus{
		domain.TaskStatusPending, domain.TaskStatusProcessing,
		domain.TaskStatusCompleted, domain.TaskStatusFailed,
	} {
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return counts, nil
}

// ErrTaskNotFound reports a lookup for an unknown task ID.
var ErrTaskNotFound = storage.ErrNotFound

// Get retrieves a task by ID.
func (q *Queue) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := q.tasks.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}
