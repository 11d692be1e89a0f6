package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/inventory-manager/internal/config"
	"github.com/fairyhunter13/inventory-manager/internal/events"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

// Manager runs the workers that publish queued events and scales their
// number with the backlog.
type Manager struct {
	cfg    config.Config
	q      *Queue
	pub    events.Publisher
	seq    Sequencer
	ctx    context.Context
	cancel context.CancelFunc

	failed atomic.Uint64

	mu            sync.Mutex
	workerCancels []context.CancelFunc
}

// NewManager wires a queue to a publisher.
func NewManager(cfg config.Config, q *Queue, pub events.Publisher) *Manager {
	return &Manager{cfg: cfg, q: q, pub: pub}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			var delta int
			delta, idleTicks = scaleStep(m.cfg, m.q.BacklogSize(), m.WorkerCount(), idleTicks)
			switch {
			case delta > 0:
				m.addWorkers(delta)
			case delta < 0:
				m.removeWorkers(-delta)
			}
		}
	}
}

// scaleStep decides one scaler tick: grow by one while the backlog exceeds
// the per-worker allowance, shrink by one after enough idle ticks. It
// returns the worker delta and the new idle tick count.
func scaleStep(cfg config.Config, backlog, workers, idleTicks int) (int, int) {
	if backlog > workers*cfg.ScaleUpBacklogPerWorker && workers < cfg.WorkerMax {
		return 1, 0
	}
	if backlog != 0 {
		return 0, 0
	}
	idleTicks++
	if idleTicks >= cfg.ScaleDownIdleTicks && workers > cfg.WorkerMin {
		return -1, 0
	}
	return 0, idleTicks
}

func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
	obs.Logger.Info("workers_scaled", "worker_count", len(m.workerCancels))
}

func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.workerCancels) {
		n = len(m.workerCancels)
	}
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Info("workers_scaled", "worker_count", len(m.workerCancels))
}

// worker publishes events until its context ends. A publish failure is
// logged and counted; the event is not retried.
func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.q.Out():
			if err := m.pub.Publish(ctx, ev); err != nil {
				m.failed.Add(1)
				obs.Logger.Error("event_publish_failed", "key", ev.Key(), "sequence", ev.Sequence, "error", err)
			}
			m.q.MarkProcessed()
		}
	}
}

// Emit stamps an event with the next sequence number and enqueues it.
func (m *Manager) Emit(resource string, action model.Action, id string, doc *model.Document) bool {
	return m.q.Enqueue(model.ChangeEvent{
		Sequence: m.seq.Next(),
		Resource: resource,
		Action:   action,
		ID:       id,
		Document: doc,
		At:       time.Now().UTC(),
	})
}

// Enqueue proxies to the underlying queue.
func (m *Manager) Enqueue(ev model.ChangeEvent) bool { return m.q.Enqueue(ev) }

// BacklogSize returns pending items in the queue.
func (m *Manager) BacklogSize() int { return m.q.BacklogSize() }

// QueueDepth returns backlog plus buffered output items.
func (m *Manager) QueueDepth() int { return m.q.QueueDepth() }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// LastSequence returns the sequence number of the newest event.
func (m *Manager) LastSequence() uint64 { return m.seq.Last() }

// PublishFailures returns how many events could not be published.
func (m *Manager) PublishFailures() uint64 { return m.failed.Load() }

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// Stats exposes the underlying queue counters.
func (m *Manager) Stats() Stats { return m.q.Stats() }

// DrainUntil blocks until the queue is fully drained or ctx is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		if m.q.Stats().Drained() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
