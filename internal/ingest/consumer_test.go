package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type mockReconciler struct {
	mu      sync.Mutex
	batches [][]domain.FailureNotification
	err     error
}

func (m *mockReconciler) Reconcile(ctx context.Context, batch []domain.FailureNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return m.err
}

func (m *mockReconciler) received() [][]domain.FailureNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.FailureNotification(nil), m.batches...)
}

type flakyQueue struct {
	*MemoryQueue
	mu       sync.Mutex
	failures int
}

func (q *flakyQueue) Push(ctx context.Context, batch []domain.FailureNotification) error {
	q.mu.Lock()
	fail := q.failures > 0
	if fail {
		q.failures--
	}
	q.mu.Unlock()
	if fail {
		return errors.New("transport hiccup")
	}
	return q.MemoryQueue.Push(ctx, batch)
}

// =============================================================================
// Consumer
// =============================================================================

func TestConsumer_FeedsBatchesToLedger(t *testing.T) {
	q := NewMemoryQueue(16)
	r := &mockReconciler{}
	c := NewConsumer(q, r, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifs := []domain.FailureNotification{
		{ProcessName: "billing", Status: domain.StatusFailure},
		{ProcessName: "shipping", Status: domain.StatusFailure},
	}
	if err := q.Push(ctx, notifs); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for {
		got := r.received()
		if len(got) >= 1 {
			total := 0
			for _, b := range got {
				total += len(b)
			}
			if total == 2 {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("consumer did not deliver the batch in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}

func TestConsumer_FailedBatchDropped(t *testing.T) {
	q := NewMemoryQueue(16)
	r := &mockReconciler{err: errors.New("db down")}
	c := NewConsumer(q, r, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = q.Push(ctx, []domain.FailureNotification{{ProcessName: "billing", Status: domain.StatusFailure}})

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for len(r.received()) == 0 {
		select {
		case <-deadline:
			t.Fatal("consumer never attempted reconciliation")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	// The failed batch must not be re-queued.
	if depth, _ := q.Depth(context.Background()); depth != 0 {
		t.Errorf("expected empty queue after drop, depth=%d", depth)
	}
}

// =============================================================================
// Publisher
// =============================================================================

func TestPublisher_RetriesTransientPushFailures(t *testing.T) {
	q := &flakyQueue{MemoryQueue: NewMemoryQueue(16), failures: 2}
	p := NewPublisher(q)

	err := p.Publish(context.Background(), []domain.FailureNotification{
		{ProcessName: "billing", Status: domain.StatusFailure},
	})
	if err != nil {
		t.Fatalf("expected publish to succeed after retries: %v", err)
	}

	if depth, _ := q.Depth(context.Background()); depth != 1 {
		t.Errorf("expected 1 queued notification, depth=%d", depth)
	}
}

func TestPublisher_EmptyBatchNoOp(t *testing.T) {
	q := NewMemoryQueue(16)
	p := NewPublisher(q)

	if err := p.Publish(context.Background(), nil); err != nil {
		t.Fatalf("empty publish must be a no-op: %v", err)
	}
	if depth, _ := q.Depth(context.Background()); depth != 0 {
		t.Errorf("expected empty queue, depth=%d", depth)
	}
}

// =============================================================================
// Memory queue
// =============================================================================

func TestMemoryQueue_PopBatchDrainsUpToMax(t *testing.T) {
	q := NewMemoryQueue(16)
	ctx := context.Background()

	var notifs []domain.FailureNotification
	for i := 0; i < 5; i++ {
		notifs = append(notifs, domain.FailureNotification{ProcessName: "billing"})
	}
	if err := q.Push(ctx, notifs); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	batch, err := q.PopBatch(ctx, 3)
	if err != nil {
		t.Fatalf("PopBatch failed: %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("expected 3 notifications, got %d", len(batch))
	}
	if depth, _ := q.Depth(ctx); depth != 2 {
		t.Errorf("expected 2 remaining, depth=%d", depth)
	}
}

func TestMemoryQueue_PopBatchEmptyTimesOut(t *testing.T) {
	q := NewMemoryQueue(16)

	start := time.Now()
	batch, err := q.PopBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("PopBatch failed: %v", err)
	}
	if len(batch) != 0 {
		t.Errorf("expected empty batch, got %d", len(batch))
	}
	if time.Since(start) > 3*time.Second {
		t.Error("empty pop blocked too long")
	}
}
