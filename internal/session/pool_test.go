package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSession is a Session that serves canned page text.
type fakeSession struct {
	body   string
	closed atomic.Bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return nil }

func (s *fakeSession) WaitForText(ctx context.Context, timeout time.Duration, keywords ...string) bool {
	return containsAny(s.body, keywords)
}

func (s *fakeSession) BodyText(ctx context.Context) (string, error) { return s.body, nil }
func (s *fakeSession) Title(ctx context.Context) (string, error)    { return "", nil }
func (s *fakeSession) Close()                                       { s.closed.Store(true) }

// fakeLauncher counts launches and can be told to fail.
type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	sessions []*fakeSession
	failWith error
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.failWith != nil {
		return nil, l.failWith
	}
	s := &fakeSession{}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func TestPoolLimitsConcurrency(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 2, nil)
	defer pool.Close()

	var active, maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
				now := atomic.AddInt32(&active, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if now <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, now) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithSession failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen > 2 {
		t.Errorf("Expected at most 2 concurrent sessions, saw %d", maxSeen)
	}
	if launcher.launches != 8 {
		t.Errorf("Expected 8 launches, got %d", launcher.launches)
	}
	if stats := pool.Stats(); stats.Active != 0 || stats.Waiting != 0 {
		t.Errorf("Expected idle pool after completion, got %+v", stats)
	}
}

func TestPoolServesWaitersInOrder(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)
	defer pool.Close()

	// Occupy the only slot.
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// Queue three waiters one at a time so their arrival order is fixed.
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		waitForWaiting(t, pool, i)
	}

	close(release)
	wg.Wait()

	for i, got := range order {
		if got != i+1 {
			t.Fatalf("Expected FIFO completion order [1 2 3], got %v", order)
		}
	}
}

func TestPoolLaunchFailureReleasesCapacity(t *testing.T) {
	boom := errors.New("chrome exploded")
	launcher := &fakeLauncher{failWith: boom}
	pool := NewPool(launcher, 1, nil)
	defer pool.Close()

	err := pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
		t.Fatal("fn should not run when launch fails")
		return nil
	})

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("Expected LaunchError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped launch cause, got %v", err)
	}

	// The slot must be free for the next caller.
	launcher.mu.Lock()
	launcher.failWith = nil
	launcher.mu.Unlock()

	ran := false
	if err := pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Expected recovery after launch failure, got %v", err)
	}
	if !ran {
		t.Error("Expected fn to run after capacity was released")
	}
}

func TestPoolContextCancelledWhileQueued(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)
	defer pool.Close()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.WithSession(ctx, func(ctx context.Context, s Session) error {
			return nil
		})
	}()
	waitForWaiting(t, pool, 1)

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if stats := pool.Stats(); stats.Waiting != 0 {
		t.Errorf("Expected empty queue after cancellation, got %+v", stats)
	}

	close(release)
}

func TestPoolSessionClosedOnEveryPath(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)
	defer pool.Close()

	taskErr := errors.New("task failed")
	err := pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
		return taskErr
	})
	if !errors.Is(err, taskErr) {
		t.Fatalf("Expected task error to propagate, got %v", err)
	}

	if len(launcher.sessions) != 1 || !launcher.sessions[0].closed.Load() {
		t.Error("Expected session to be closed after a failing task")
	}
}

func TestPoolClosed(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)
	pool.Close()

	err := pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
		return nil
	})
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolCloseWakesWaiters(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.WithSession(context.Background(), func(ctx context.Context, s Session) error {
			return nil
		})
	}()
	waitForWaiting(t, pool, 1)

	pool.Close()
	if err := <-errCh; !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Expected ErrPoolClosed for queued waiter, got %v", err)
	}

	close(release)
}

func TestPoolCloseDuringSlotTransfer(t *testing.T) {
	launcher := &fakeLauncher{}
	pool := NewPool(launcher, 1, nil)

	if err := pool.acquire(context.Background()); err != nil {
		t.Fatalf("Expected to occupy the only slot, got %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.acquire(context.Background())
	}()
	waitForWaiting(t, pool, 1)

	// Mark the pool closed without waking the waiter, then hand over the held
	// slot. The waiter wakes from the transfer, observes the closure and must
	// give the slot back instead of keeping it.
	pool.mu.Lock()
	pool.closed = true
	pool.mu.Unlock()
	pool.release()

	if err := <-errCh; !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Expected ErrPoolClosed for waiter woken by transfer, got %v", err)
	}
	if stats := pool.Stats(); stats.Active != 0 {
		t.Errorf("Expected all capacity released after close, got %+v", stats)
	}
}

// waitForWaiting blocks until the pool reports at least n queued waiters.
func waitForWaiting(t *testing.T, pool *Pool, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pool.Stats().Waiting >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d queued waiters", n)
}
