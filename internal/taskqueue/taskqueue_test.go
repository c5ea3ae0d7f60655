package taskqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitProcessFIFO(t *testing.T) {
	q := New(4)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if err := q.Submit(func() { order = append(order, i) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		task, err := q.Process()
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		task()
	}
	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestTrySubmitRejectsWhenFull(t *testing.T) {
	q := New(1)
	if !q.TrySubmit(func() {}) {
		t.Fatal("first TrySubmit should succeed")
	}
	if q.TrySubmit(func() {}) {
		t.Fatal("second TrySubmit should fail on a full queue")
	}
}

func TestFillEnqueuesUpToCapacity(t *testing.T) {
	q := New(2)
	tasks := []Task{func() {}, func() {}, func() {}}
	n := q.Fill(tasks)
	if n != 2 {
		t.Errorf("Fill enqueued %d, want 2", n)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestSubmitBlocksUntilRoom(t *testing.T) {
	q := New(1)
	if err := q.Submit(func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := q.Submit(func() {}); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Submit should have blocked on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := q.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Submit never unblocked after a slot freed")
	}
}

func TestShutdownWakesBlockedProducersAndConsumers(t *testing.T) {
	q := New(1)
	if err := q.Submit(func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var wg sync.WaitGroup
	var producerErr, consumerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		producerErr = q.Submit(func() {})
	}()
	go func() {
		defer wg.Done()
		if _, err := q.Process(); err != nil {
			consumerErr = err
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Shutdown()
	wg.Wait()

	if producerErr != nil && producerErr != ErrClosed {
		t.Errorf("producer error = %v, want nil or ErrClosed", producerErr)
	}
	_ = consumerErr
}

func TestAwaitCompletionBlocksUntilDrained(t *testing.T) {
	q := New(4)
	var processed int32
	for i := 0; i < 3; i++ {
		if err := q.Submit(func() {}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	go func() {
		for {
			task, err := q.Process()
			if err != nil {
				return
			}
			task()
			atomic.AddInt32(&processed, 1)
		}
	}()
	q.AwaitCompletion()
	// AwaitCompletion returns once Process has removed every task; the
	// consumer may still be running the last one, so the check is on the
	// queue depth rather than on the processed count.
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after AwaitCompletion = %d, want 0", got)
	}
}

func TestMinimumRemainingCapacity(t *testing.T) {
	q := New(3)
	if got := q.minimumRemainingCapacity(); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	_ = q.TrySubmit(func() {})
	if got := q.minimumRemainingCapacity(); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}
