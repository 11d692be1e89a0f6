// Package queue buffers change events and hands them to a pool of publishing
// workers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

// Queue is an unbounded backlog of change events drained by a background
// broker into a bounded output channel. Enqueue never blocks a request.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.ChangeEvent
	notify       chan struct{}
	out          chan model.ChangeEvent
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Enqueued  uint64
	Processed uint64
	Backlog   int
	Depth     int
}

// Drained reports whether everything enqueued has been processed.
func (s Stats) Drained() bool {
	return s.Backlog == 0 && s.Depth == 0 && s.Enqueued == s.Processed
}

// New creates a Queue whose output channel holds outBuffer events.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.ChangeEvent, outBuffer),
	}
}

// Start runs the broker until ctx ends.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	over := false
	for {
		q.flushOnce()
		if highWatermark > 0 {
			sz := q.BacklogSize()
			switch {
			case sz > highWatermark && !over:
				over = true
				obs.Logger.Warn("queue_high_watermark", "backlog_size", sz, "high_watermark", highWatermark)
			case sz <= highWatermark && over:
				over = false
				obs.Logger.Info("queue_below_watermark", "backlog_size", sz, "high_watermark", highWatermark)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce moves as much backlog as fits into the output channel.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.backlog) && len(q.out) < cap(q.out) {
		q.out <- q.backlog[n]
		n++
	}
	if n == 0 {
		return
	}
	clear(q.backlog[:n])
	q.backlog = q.backlog[n:]
}

// Enqueue appends an event to the backlog and reports false once intake is
// closed.
func (q *Queue) Enqueue(ev model.ChangeEvent) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out is read by workers.
func (q *Queue) Out() <-chan model.ChangeEvent { return q.out }

// BacklogSize returns events not yet handed to the output channel.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// QueueDepth returns backlog plus buffered output events.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed counts an event as handled, whether or not publishing
// succeeded.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Stats returns counters and sizes.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Backlog:   q.BacklogSize(),
		Depth:     q.QueueDepth(),
	}
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
