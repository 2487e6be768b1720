// Package audit records audit-trail entries off the request path. Writes
// that fail are logged and dropped; they never reach the caller.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/librarykeeper/internal/logging"
	"github.com/dmitrijs2005/librarykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/librarykeeper/internal/server/models"
)

// Writer persists a single entry. auditlogs.Repository implements it.
type Writer interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

// Dispatcher queues entries on a bounded channel and writes them from a
// single goroutine. When the queue is full new entries are dropped.
type Dispatcher struct {
	writer       Writer
	logger       logging.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	ch        chan models.AuditEntry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu orders enqueues against Close so nothing lands after the final drain.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(writer Writer, logger logging.Logger, m *metrics.Metrics, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		writer:       writer,
		logger:       logger.With("module", "audit"),
		metrics:      m,
		writeTimeout: 5 * time.Second,
		ch:           make(chan models.AuditEntry, bufferSize),
		done:         make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Record enqueues entry without blocking. Entries that arrive when the
// queue is full or the dispatcher is closed are counted as dropped.
func (d *Dispatcher) Record(ctx context.Context, entry models.AuditEntry) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, entry, "audit dispatcher closed, entry dropped")
		return
	}

	select {
	case d.ch <- entry:
	default:
		d.drop(ctx, entry, "audit queue full, entry dropped")
	}
}

func (d *Dispatcher) drop(ctx context.Context, entry models.AuditEntry, msg string) {
	d.dropped.Add(1)
	d.metrics.AuditEvent("dropped")
	d.logger.Warn(ctx, msg, "action", entry.Action)
}

// Close stops accepting entries and waits until queued ones are written.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.write(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(entry models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	if err := d.writer.Create(ctx, &entry); err != nil {
		d.metrics.AuditEvent("failed")
		d.logger.Error(ctx, "failed to write audit log", "action", entry.Action, "user_id", entry.UserID, "error", err)
		return
	}
	d.metrics.AuditEvent("written")
}
