package shipper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/format"
	"github.com/ajitpratap0/parquetflow/pkg/logger"
)

const (
	defaultQueueDepth = 64
	maxAttempts       = 3
	retryBase         = 200 * time.Millisecond
)

type job struct {
	path string
	md   *format.FileMetadata
}

// Queue ships files on background workers. Enqueue blocks once depth files
// are waiting, which in turn stalls the sink consumer rather than losing
// closed files.
type Queue struct {
	shipper Shipper
	logger  *zap.Logger
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	shipped atomic.Int64
	failed  atomic.Int64
}

// NewQueue starts workers goroutines feeding sh.
func NewQueue(sh Shipper, workers int, log *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		shipper: sh,
		logger:  log.With(zap.String("component", "ship_queue")),
		jobs:    make(chan job, defaultQueueDepth),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue hands a closed file to the workers. Its signature matches
// sink.FileClosedFunc apart from the error, see Hook.
func (q *Queue) Enqueue(path string, md *format.FileMetadata) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return flowerrors.New(flowerrors.CodeNotOpen, "ship queue is closed").WithDetail("path", path)
	}
	q.jobs <- job{path: path, md: md}
	return nil
}

// Hook adapts Enqueue to the sink's closed-file callback.
func (q *Queue) Hook(path string, md *format.FileMetadata) {
	if err := q.Enqueue(path, md); err != nil {
		q.logger.Error("file not shipped", zap.String("path", path), zap.Error(err))
	}
}

// Shipped returns the number of files uploaded.
func (q *Queue) Shipped() int64 { return q.shipped.Load() }

// Failed returns the number of files given up on.
func (q *Queue) Failed() int64 { return q.failed.Load() }

// Close stops accepting files and waits for queued ones to finish. If ctx
// expires first, in-flight uploads are cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		if err := q.ship(j); err != nil {
			q.failed.Add(1)
			q.logger.Error("giving up on file", zap.String("path", j.path), zap.Error(err))
			continue
		}
		q.shipped.Add(1)
	}
}

func (q *Queue) ship(j job) error {
	ctx := logger.ContextWithFile(q.ctx, j.path)
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = q.shipper.Ship(ctx, j.path, j.md); err == nil {
			return nil
		}
		if attempt == maxAttempts || q.ctx.Err() != nil {
			break
		}
		logger.WithContext(ctx, q.logger).Warn("ship failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(retryBase * time.Duration(attempt)):
		case <-q.ctx.Done():
			return err
		}
	}
	return err
}
