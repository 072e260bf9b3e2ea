// Package audit records admin mutations as a human-readable change trail.
// Writes are queued and persisted by a background worker so handlers never
// block on the audit path.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/store"
)

// queueSize bounds pending audit writes. Overflow drops the entry with a
// warning rather than stalling the request that produced it.
const queueSize = 256

// Recorder appends audit entries asynchronously.
type Recorder struct {
	store  store.RecordStore
	logger *zap.Logger

	jobs      chan store.AuditEntry
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRecorder starts the persistence worker.
func NewRecorder(recordStore store.RecordStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		store:  recordStore,
		logger: logger,
		jobs:   make(chan store.AuditEntry, queueSize),
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.jobs:
			r.persist(entry)
		case <-r.done:
			for {
				select {
				case entry := <-r.jobs:
					r.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(entry store.AuditEntry) {
	if err := r.store.AppendAudit(&entry); err != nil {
		r.logger.Error("audit write failed",
			zap.String("username", entry.Username),
			zap.String("change", entry.Change),
			zap.Error(err),
		)
	}
}

// Record queues one change line attributed to the acting user.
func (r *Recorder) Record(username, change string) {
	entry := store.AuditEntry{
		ID:        uuid.NewString(),
		Username:  username,
		Change:    change,
		CreatedAt: time.Now(),
	}

	select {
	case r.jobs <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			zap.String("username", username),
			zap.String("change", change),
		)
	}
}

// Close drains queued entries and stops the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
