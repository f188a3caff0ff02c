package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type fakeSubscriptionSvc struct {
	mu          sync.Mutex
	expireCalls int
	expireNow   time.Time
	expireCount int64
	expireErr   error
}

func (f *fakeSubscriptionSvc) CheckAndExpireTrials(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	f.expireNow = now
	return f.expireCount, f.expireErr
}

func (f *fakeSubscriptionSvc) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expireCalls
}

func (f *fakeSubscriptionSvc) Create(context.Context, subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.CreateSubscriptionResponse, error) {
	return subscriptiondomain.CreateSubscriptionResponse{}, nil
}

func (f *fakeSubscriptionSvc) CreateTrial(context.Context, string) (subscriptiondomain.CreateTrialResponse, error) {
	return subscriptiondomain.CreateTrialResponse{}, nil
}

func (f *fakeSubscriptionSvc) ConvertTrialToPaid(context.Context, subscriptiondomain.ConvertTrialRequest) (*subscriptiondomain.Subscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionSvc) GetUserSubscriptionStatus(context.Context, string) (subscriptiondomain.SubscriptionStatusResponse, error) {
	return subscriptiondomain.SubscriptionStatusResponse{}, nil
}

func (f *fakeSubscriptionSvc) HasUsedTrial(context.Context, string) (bool, error) {
	return false, nil
}

type stubLock struct {
	held       bool
	lockErr    error
	lockKey    string
	lockToken  string
	released   bool
	releaseKey string
	releaseTok string
}

func (l *stubLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.lockKey = key
	if l.lockErr != nil {
		return "", false, l.lockErr
	}
	if l.held {
		return "", false, nil
	}
	l.lockToken = "tok-1"
	return l.lockToken, true, nil
}

func (l *stubLock) Release(ctx context.Context, key, token string) error {
	l.released = true
	l.releaseKey = key
	l.releaseTok = token
	return nil
}

func newTestScheduler(svc *fakeSubscriptionSvc, lock sweepLock, m *obsmetrics.Metrics) *Scheduler {
	s := &Scheduler{
		log:             zap.NewNop(),
		cfg:             config.Config{TrialSweepInterval: time.Hour, TrialSweepLockTTL: time.Minute},
		clock:           clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		subscriptionSvc: svc,
		obsMetrics:      m,
	}
	if lock != nil {
		s.locker = lock
	}
	return s
}

func TestSweepExpiresTrialsAndCounts(t *testing.T) {
	svc := &fakeSubscriptionSvc{expireCount: 3}
	m := obsmetrics.New(prometheus.NewRegistry())
	s := newTestScheduler(svc, nil, m)

	s.sweep(context.Background())

	if svc.calls() != 1 {
		t.Fatalf("expected 1 expire call, got %d", svc.calls())
	}
	if want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC); !svc.expireNow.Equal(want) {
		t.Fatalf("expected sweep driven by the injected clock, got %v", svc.expireNow)
	}
	if got := testutil.ToFloat64(m.TrialsExpired); got != 3 {
		t.Fatalf("expected 3 expired trials counted, got %v", got)
	}
}

func TestSweepReleasesLockWithToken(t *testing.T) {
	svc := &fakeSubscriptionSvc{}
	lock := &stubLock{}
	s := newTestScheduler(svc, lock, nil)

	s.sweep(context.Background())

	if svc.calls() != 1 {
		t.Fatalf("expected sweep to run under the lock, got %d calls", svc.calls())
	}
	if lock.lockKey != trialSweepLockKey {
		t.Fatalf("unexpected lock key %q", lock.lockKey)
	}
	if !lock.released || lock.releaseKey != trialSweepLockKey || lock.releaseTok != lock.lockToken {
		t.Fatalf("expected release with the acquired token, got released=%v key=%q token=%q",
			lock.released, lock.releaseKey, lock.releaseTok)
	}
}

func TestSweepSkipsWhenLockHeldElsewhere(t *testing.T) {
	svc := &fakeSubscriptionSvc{}
	lock := &stubLock{held: true}
	s := newTestScheduler(svc, lock, nil)

	s.sweep(context.Background())

	if svc.calls() != 0 {
		t.Fatalf("expected no sweep while another replica holds the lock, got %d calls", svc.calls())
	}
	if lock.released {
		t.Fatal("a lock that was never acquired must not be released")
	}
}

func TestSweepSkipsWhenLockUnavailable(t *testing.T) {
	svc := &fakeSubscriptionSvc{}
	lock := &stubLock{lockErr: errors.New("redis down")}
	s := newTestScheduler(svc, lock, nil)

	s.sweep(context.Background())

	if svc.calls() != 0 {
		t.Fatalf("expected no sweep when the lock backend is down, got %d calls", svc.calls())
	}
}

func TestRunForeverSweepsImmediatelyAndStops(t *testing.T) {
	svc := &fakeSubscriptionSvc{}
	s := newTestScheduler(svc, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunForever(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for svc.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected an immediate sweep on start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected RunForever to return on cancel")
	}
}
