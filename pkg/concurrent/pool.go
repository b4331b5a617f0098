package concurrent

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool is a fixed set of goroutines executing submitted jobs.
// TryGo never blocks: it hands a job over only when a worker is idle,
// so the number of running jobs never exceeds Size.
type WorkerPool struct {
	size  int
	jobs  chan func()
	idle  atomic.Int32
	group errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool starts size workers. A size below 1 is raised to 1.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	p := &WorkerPool{
		size: size,
		jobs: make(chan func(), size),
	}
	p.idle.Store(int32(size))
	for range size {
		p.group.Go(p.work)
	}
	return p
}

func (p *WorkerPool) work() error {
	for job := range p.jobs {
		job()
		p.idle.Add(1)
	}
	return nil
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Idle returns the number of workers not running a job.
func (p *WorkerPool) Idle() int { return int(p.idle.Load()) }

// TryGo starts job on an idle worker. It reports false when every
// worker is busy or the pool is closed.
func (p *WorkerPool) TryGo(job func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	for {
		n := p.idle.Load()
		if n <= 0 {
			return false
		}
		if p.idle.CompareAndSwap(n, n-1) {
			break
		}
	}
	p.jobs <- job
	return true
}

// Go queues job, blocking until a worker accepts it.
func (p *WorkerPool) Go(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.idle.Add(-1)
	p.jobs <- job
	return nil
}

// Close stops accepting jobs and waits for the running ones to finish.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	return p.group.Wait()
}
