package scheduler

import (
	"context"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const trialSweepLockKey = "proxlay:lock:trial_sweep"

// sweepLock is what the sweep needs from a distributed lock; *Locker is the
// redis-backed implementation.
type sweepLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log             *zap.Logger
	Cfg             config.Config
	Clock           clock.Clock
	SubscriptionSvc subscriptiondomain.Service
	Locker          *Locker             `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

// Scheduler drives the periodic trial expiry sweep. The sweep itself is a
// single bulk UPDATE, so running it from several replicas is safe; the lock
// only avoids redundant work.
type Scheduler struct {
	log             *zap.Logger
	cfg             config.Config
	clock           clock.Clock
	subscriptionSvc subscriptiondomain.Service
	locker          sweepLock
	obsMetrics      *obsmetrics.Metrics
}

func New(p Params) *Scheduler {
	s := &Scheduler{
		log:             p.Log.Named("scheduler"),
		cfg:             p.Cfg,
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		obsMetrics:      p.ObsMetrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s
}

func (s *Scheduler) RunForever(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.cfg.TrialSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, trialSweepLockKey, s.cfg.TrialSweepLockTTL)
		if err != nil {
			s.log.Warn("trial sweep lock unavailable", zap.Error(err))
			return
		}
		if !ok {
			s.log.Debug("trial sweep already running elsewhere")
			return
		}
		defer func() {
			if err := s.locker.Release(ctx, trialSweepLockKey, token); err != nil {
				s.log.Warn("trial sweep lock release failed", zap.Error(err))
			}
		}()
	}

	count, err := s.subscriptionSvc.CheckAndExpireTrials(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("trial sweep failed", zap.Error(err))
		return
	}
	if s.obsMetrics != nil {
		s.obsMetrics.TrialsExpired.Add(float64(count))
	}
}
