package queue

import (
	"context"
	"testing"
	"time"

	"github.com/fairyhunter13/inventory-manager/internal/config"
	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
)

// slowPublisher keeps a backlog around long enough for the scaler to see it.
type slowPublisher struct{ delay time.Duration }

func (p slowPublisher) Publish(ctx context.Context, _ model.ChangeEvent) error {
	select {
	case <-ctx.Done():
	case <-time.After(p.delay):
	}
	return nil
}

func (slowPublisher) Close() error { return nil }

func TestManagerScaler_UpAndDown(t *testing.T) {
	t.Setenv("WORKER_MIN", "1")
	t.Setenv("WORKER_MAX", "3")
	t.Setenv("WORKER_COUNT", "1")
	t.Setenv("SCALE_INTERVAL_MS", "50")
	t.Setenv("SCALE_UP_BACKLOG_PER_WORKER", "1")
	t.Setenv("SCALE_DOWN_IDLE_TICKS", "1")

	cfg := config.Load()
	obs.InitLogger("error")
	q := New(8)
	mgr := NewManager(cfg, q, slowPublisher{delay: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	for i := 0; i < 50; i++ {
		_ = mgr.Enqueue(model.ChangeEvent{Sequence: uint64(i), Resource: model.ResourceProducts, ID: "scale"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if wc := mgr.WorkerCount(); wc > 1 {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if wc := mgr.WorkerCount(); wc <= 1 {
		t.Fatalf("expected scale up, worker_count=%d", wc)
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDrain()
	if ok := mgr.DrainUntil(ctxDrain); !ok {
		t.Fatalf("drain timeout")
	}
	deadline2 := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline2) {
		if wc := mgr.WorkerCount(); wc == cfg.WorkerMin {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if wc := mgr.WorkerCount(); wc != cfg.WorkerMin {
		t.Fatalf("expected scale down to %d, got %d", cfg.WorkerMin, wc)
	}
}
