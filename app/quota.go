// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/inkwellhq/quotad/adapters/metrics"
	"github.com/inkwellhq/quotad/domain/plan"
	"github.com/inkwellhq/quotad/domain/quota"
	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
	"github.com/rs/zerolog"
)

// ErrStoreUnavailable marks a failure to reach the usage store.
// Reads degrade fail-open around it; the increment in RecordConsumption
// fails closed with it, so callers can tell an accounting failure from a
// quota-exceeded result.
var ErrStoreUnavailable = errors.New("usage store unavailable")

// QuotaService answers "may this user consume one question?" and performs
// accounted consumptions against per-user, per-plan daily limits.
type QuotaService struct {
	store ports.UsageStore
	logs  ports.UsageLogStore
	clock ports.Clock
	idGen ports.IDGenerator
	cache *UsageCache

	logger  zerolog.Logger
	metrics *metrics.Collector

	storeTimeout time.Duration

	// Plan table (hot-reloadable)
	plans atomic.Pointer[[]plan.Plan]
}

// QuotaDeps contains dependencies for QuotaService.
type QuotaDeps struct {
	Store  ports.UsageStore
	Logs   ports.UsageLogStore
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger zerolog.Logger

	// Metrics is optional; nil disables collection.
	Metrics *metrics.Collector
}

// QuotaConfig contains configuration for QuotaService.
type QuotaConfig struct {
	Plans        []plan.Plan
	StoreTimeout time.Duration // bound on each store call (default: 3s)
	Cache        CacheConfig
}

// NewQuotaService creates a quota service.
func NewQuotaService(deps QuotaDeps, cfg QuotaConfig) *QuotaService {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = plan.Defaults()
	}

	s := &QuotaService{
		store:        deps.Store,
		logs:         deps.Logs,
		clock:        deps.Clock,
		idGen:        deps.IDGen,
		cache:        NewUsageCache(deps.Clock, cfg.Cache),
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		storeTimeout: cfg.StoreTimeout,
	}
	s.UpdatePlans(cfg.Plans)
	return s
}

// UpdatePlans swaps the plan table. Thread-safe; wired to config hot
// reload so limit changes apply without a restart.
func (s *QuotaService) UpdatePlans(plans []plan.Plan) {
	cp := make([]plan.Plan, len(plans))
	copy(cp, plans)
	s.plans.Store(&cp)
}

// Plans returns the current plan table.
func (s *QuotaService) Plans() []plan.Plan {
	return *s.plans.Load()
}

// limitFor resolves a plan ID against the current table. Unknown plans
// resolve to the most restrictive limit and are logged for visibility.
func (s *QuotaService) limitFor(planID string) plan.Limit {
	limit, known := plan.LimitFor(s.Plans(), planID)
	if !known {
		s.logger.Warn().Str("plan_id", planID).Int64("limit", int64(limit)).
			Msg("unknown plan, applying most restrictive limit")
		if s.metrics != nil {
			s.metrics.UnknownPlans.WithLabelValues(planID).Inc()
		}
	}
	return limit
}

// storeCtx bounds a store call. A timeout is treated identically to any
// other store failure, never as "no usage recorded".
func (s *QuotaService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// GetUsage resolves the current usage record for a user: cache, then
// store, creating or resetting the record as needed. It never errors on a
// read; when the store is unreachable it returns a zeroed in-memory
// record instead. That is a deliberate fail-open choice: an accounting
// outage must not deny the assistant, at the cost of under-counting
// while the store is down.
func (s *QuotaService) GetUsage(ctx context.Context, userID, planID string) ports.UsageRecord {
	now := s.clock.Now()
	today := s.clock.DayStart(now)

	// 1. Cache lookup. A hit whose window predates today is stale and
	// counts as a miss; it is never served as-is.
	if rec, ok := s.cache.Get(userID); ok && !quota.NeedsReset(rec, today) {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return rec
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	// 2. Load from the store (I/O, bounded).
	loadCtx, cancel := s.storeCtx(ctx)
	rec, err := s.store.Load(loadCtx, userID)
	cancel()

	switch {
	case err == nil:
		// fall through

	case errors.Is(err, ports.ErrNotFound):
		// 3a. First access: synthesize and persist a fresh record.
		rec = quota.NewRecord(userID, planID, s.limitFor(planID), today, now)
		if saveErr := s.persist(ctx, rec); saveErr != nil {
			// Not durable; served from memory and not cached, so the
			// next call retries creation.
			return rec
		}
		s.cache.Put(userID, rec)
		return rec

	default:
		// 3b. Store unreachable: fail open with a zeroed record.
		// Deliberately not cached, so real state is re-read the
		// moment the store recovers.
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("load").Inc()
			s.metrics.DegradedReads.Inc()
		}
		s.logger.Warn().Err(err).Str("user_id", userID).
			Msg("usage store unavailable, serving fail-open record")
		return quota.NewRecord(userID, planID, s.limitFor(planID), today, now)
	}

	// 4. Day-boundary reset.
	if quota.NeedsReset(rec, today) {
		old := rec.QuestionsUsed
		rec = quota.Reset(rec, planID, s.limitFor(planID), today, now)
		if saveErr := s.persist(ctx, rec); saveErr != nil {
			return rec
		}
		if s.metrics != nil {
			s.metrics.Resets.Inc()
		}
		s.logger.Debug().Str("user_id", userID).Int64("previous_used", old).
			Msg("quota reset at day boundary")
	}

	s.cache.Put(userID, rec)
	return rec
}

// persist saves a record with a bounded store call, logging failures.
func (s *QuotaService) persist(ctx context.Context, rec ports.UsageRecord) error {
	saveCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.Save(saveCtx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("save").Inc()
		}
		s.logger.Error().Err(err).Str("user_id", rec.UserID).Msg("persist usage record failed")
		return err
	}
	return nil
}

// CanConsume reports whether the user may consume one more question today.
func (s *QuotaService) CanConsume(ctx context.Context, userID, planID string) bool {
	return quota.CanConsume(s.GetUsage(ctx, userID, planID))
}

// RecordConsumption performs an accounted consumption: re-validates the
// quota, applies the increment against the authoritative store, updates
// the cache, and appends a log entry. Returns (false, nil) when the limit
// is reached and (false, ErrStoreUnavailable) when the increment could
// not be applied; the two are distinct so callers can allow-but-warn on
// accounting failures instead of denying.
//
// Concurrent callers that each observed headroom may collectively push
// the count past the limit by at most the in-flight batch; the store's
// atomic increment prevents any unbounded overshoot.
func (s *QuotaService) RecordConsumption(ctx context.Context, userID, planID, category string, artifactBytes int64) (bool, error) {
	rec := s.GetUsage(ctx, userID, planID)

	if !quota.CanConsume(rec) {
		if s.metrics != nil {
			s.metrics.Decisions.WithLabelValues("denied", planID).Inc()
		}
		return false, nil
	}

	incCtx, cancel := s.storeCtx(ctx)
	newCount, err := s.store.AtomicIncrement(incCtx, userID, 1)
	cancel()
	if err != nil {
		// Fail closed on the accounting step: the caller decides
		// whether to allow-and-warn or deny-and-retry. The cached
		// record may or may not include this attempt, so drop it.
		s.cache.Invalidate(userID)
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("increment").Inc()
			s.metrics.Decisions.WithLabelValues("failed", planID).Inc()
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("usage increment failed")
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.clock.Now()
	rec.QuestionsUsed = newCount
	rec.LastUpdated = now
	s.cache.Put(userID, rec)

	// Log append is fire-and-forget: a logging failure never turns a
	// successful consumption into a reported failure.
	entry := usage.NewEntry(s.idGen.New(), userID, planID, category, artifactBytes, now)
	logCtx, cancel := s.storeCtx(ctx)
	if err := s.logs.Append(logCtx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.LogFailures.Inc()
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("category", category).
			Msg("usage log append failed")
	}
	cancel()

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues("allowed", planID).Inc()
	}
	return true, nil
}
