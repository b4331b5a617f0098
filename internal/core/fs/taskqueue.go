package fs

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/pkg/concurrent"
)

const (
	EventCopyComplete = "FileEvent::COPY_COMPLETE"
	EventCopyFailed   = "FileEvent::COPY_FAILED"
)

// State is the lifecycle stage of a Task.
type State int32

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Task is a handle on one asynchronous copy.
type Task struct {
	id    int
	src   string
	dst   string
	state atomic.Int32

	mu  sync.Mutex
	err error
}

func (t *Task) ID() int        { return t.id }
func (t *Task) Source() string { return t.src }
func (t *Task) Dest() string   { return t.dst }
func (t *Task) State() State   { return State(t.state.Load()) }

// Err is the copy failure of a Failed task.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) finish(err error) State {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()

	state := StateCompleted
	if err != nil {
		state = StateFailed
	}
	t.state.Store(int32(state))
	return state
}

// FileEvent reports the outcome of a copy task.
type FileEvent struct {
	TaskID  int
	Outcome State
	Source  string
	Dest    string
	Err     error
	at      time.Time
}

func (e FileEvent) Type() string {
	if e.Outcome == StateCompleted {
		return EventCopyComplete
	}
	return EventCopyFailed
}

func (e FileEvent) Timestamp() time.Time { return e.at }
func (e FileEvent) Data() any            { return e }

// TaskQueue runs copies on a fixed worker pool. Submit only records the
// task; Update, called from the main loop, starts queued tasks on idle
// workers and fires completion events through Dispatcher.
type TaskQueue struct {
	fs         Service
	pool       *concurrent.WorkerPool
	pending    *concurrent.Queue[*Task]
	completed  *concurrent.Queue[FileEvent]
	dispatcher *bus.Dispatcher
	logger     log.Log

	nextID atomic.Int32
	closed atomic.Bool
}

// NewTaskQueue creates a queue running at most workers copies at once.
func NewTaskQueue(fs Service, workers int, logger log.Log) *TaskQueue {
	logger = logger.With(log.String("component", "fs_tasks"))
	return &TaskQueue{
		fs:         fs,
		pool:       concurrent.NewWorkerPool(workers),
		pending:    concurrent.NewQueue[*Task](),
		completed:  concurrent.NewQueue[FileEvent](),
		dispatcher: bus.NewDispatcher("filesystem", logger),
		logger:     logger,
	}
}

// Dispatcher is the source of the FileEvent::* events.
func (q *TaskQueue) Dispatcher() *bus.Dispatcher { return q.dispatcher }

// Workers returns the pool size.
func (q *TaskQueue) Workers() int { return q.pool.Size() }

// Pending returns the number of tasks not yet started.
func (q *TaskQueue) Pending() int { return q.pending.Len() }

// Submit queues a copy of src to dst. Ids wrap to 0 after math.MaxInt32.
func (q *TaskQueue) Submit(src, dst string) (*Task, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	t := &Task{id: q.allocID(), src: src, dst: dst}
	q.pending.Push(t)
	return t, nil
}

func (q *TaskQueue) allocID() int {
	for {
		cur := q.nextID.Load()
		next := cur + 1
		if cur == math.MaxInt32 {
			next = 0
		}
		if q.nextID.CompareAndSwap(cur, next) {
			return int(cur)
		}
	}
}

// Update starts queued tasks and fires the completions gathered since
// the previous call.
func (q *TaskQueue) Update() error {
	q.DrainAndDispatch()
	return q.DispatchEvents()
}

// DrainAndDispatch hands one queued task to each idle worker.
func (q *TaskQueue) DrainAndDispatch() int {
	started := 0
	for q.pool.Idle() > 0 {
		t, ok := q.pending.Pop()
		if !ok {
			break
		}
		if !q.pool.TryGo(func() { q.run(t) }) {
			q.complete(t, ErrQueueClosed)
			break
		}
		started++
	}
	return started
}

// DispatchEvents fires every queued completion event on the calling
// goroutine, in completion order.
func (q *TaskQueue) DispatchEvents() error {
	var all error
	for _, ev := range q.completed.Drain() {
		if err := q.dispatcher.Fire(ev); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (q *TaskQueue) run(t *Task) {
	t.state.Store(int32(StateRunning))

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("copy panic: %v", r)
			}
		}()
		err = q.fs.Copy(t.src, t.dst)
	}()

	if err != nil {
		q.logger.Error("copy failed",
			log.Int("task", t.id),
			log.String("src", t.src),
			log.String("dst", t.dst),
			log.Error(err))
	}
	q.complete(t, err)
}

func (q *TaskQueue) complete(t *Task, err error) {
	state := t.finish(err)
	q.completed.Push(FileEvent{
		TaskID:  t.id,
		Outcome: state,
		Source:  t.src,
		Dest:    t.dst,
		Err:     err,
		at:      time.Now(),
	})
}

// Close refuses new submissions, runs the tasks still queued and waits
// for every worker. Completion events stay queued for DispatchEvents.
func (q *TaskQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	for {
		t, ok := q.pending.Pop()
		if !ok {
			break
		}
		if err := q.pool.Go(func() { q.run(t) }); err != nil {
			q.complete(t, err)
		}
	}
	return q.pool.Close()
}
