// AngelaMos | 2026
// dispatcher_test.go

package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubRepo struct {
	mu    sync.Mutex
	calls []string
	err   error
	delay time.Duration
	ctxOK bool
}

func (s *stubRepo) CreateForRole(ctx context.Context, role, _, _, kind string) (int64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, role+":"+kind)
	s.ctxOK = ctx.Err() == nil
	return 2, s.err
}

func (s *stubRepo) ListForUser(context.Context, string, ListParams) ([]Notification, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) MarkRead(context.Context, string, string) error { return nil }

func (s *stubRepo) CountUnread(context.Context, string) (int, error) { return 0, nil }

func TestDispatcherOutlivesRequestContext(t *testing.T) {
	repo := &stubRepo{delay: 20 * time.Millisecond}
	d := NewDispatcher(repo, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.NotifyAdmins(ctx, "New sale", "1 x Widget", "sale")
	cancel()
	d.Wait()

	if len(repo.calls) != 1 || repo.calls[0] != "administrator:sale" {
		t.Fatalf("unexpected calls %v", repo.calls)
	}
	if !repo.ctxOK {
		t.Fatalf("dispatch context was cancelled with the request")
	}
}

func TestDispatcherSwallowsErrors(t *testing.T) {
	repo := &stubRepo{err: errors.New("db down")}
	d := NewDispatcher(repo, nil, time.Second)

	d.NotifyAdmins(context.Background(), "t", "m", "sale_reversal")
	d.Wait()

	if len(repo.calls) != 1 {
		t.Fatalf("expected one attempt, got %d", len(repo.calls))
	}
}

func TestDispatcherTimeoutBoundsWrite(t *testing.T) {
	repo := &stubRepo{delay: time.Second}
	d := NewDispatcher(repo, nil, 10*time.Millisecond)

	start := time.Now()
	d.NotifyAdmins(context.Background(), "t", "m", "sale")
	d.Wait()

	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("dispatch ignored its timeout")
	}
	if len(repo.calls) != 0 {
		t.Fatalf("timed out write should not be recorded")
	}
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Page: -3, PageSize: 1000}
	p.Normalize()
	if p.Page != 1 || p.PageSize != 100 || p.Offset() != 0 {
		t.Fatalf("unexpected normalized params %+v", p)
	}
}
