// Package rewardsPoller periodically refreshes the rewards snapshot of every watched service
// and keeps the latest outcome of each in memory.
package rewardsPoller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/retry"
	"github.com/pearl-agents/staking-sidecar/pkg/rewards"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

// AggregatorResolver picks the aggregator serving a program. rewards.AggregatorSet implements it.
type AggregatorResolver interface {
	ForProgram(chainId uint64, programId string) (rewards.StakedAgentAggregator, error)
}

type PollerConfig struct {
	Interval       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	Concurrency    int
	// Clock defaults to time.Now
	Clock func() time.Time
}

// PollResult is the latest outcome for one service. When a refresh fails after an earlier
// success, Snapshot still holds the earlier snapshot and Stale is set.
type PollResult struct {
	Service       stakingTypes.WatchedService
	Snapshot      *stakingTypes.StakingRewardsSnapshot
	Stale         bool
	ErrorKind     stakingTypes.ErrorKind
	Error         string
	UpdatedAt     time.Time
	LastAttemptAt time.Time
	CycleId       string
}

type CycleSummary struct {
	CycleId  string
	Services int
	Ok       int
	Failed   int
	Duration time.Duration
}

type resultKey struct {
	chainId   uint64
	programId string
	serviceId uint64
}

func keyOf(s stakingTypes.WatchedService) resultKey {
	return resultKey{chainId: s.ChainId, programId: s.ProgramId, serviceId: s.Service.ServiceId}
}

type RewardsPoller struct {
	config      *PollerConfig
	source      ServiceSource
	aggregators AggregatorResolver
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	mu      sync.RWMutex
	results map[resultKey]*PollResult
}

func NewRewardsPoller(
	cfg *PollerConfig,
	source ServiceSource,
	aggregators AggregatorResolver,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RewardsPoller {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &RewardsPoller{
		config:      cfg,
		source:      source,
		aggregators: aggregators,
		metricsSink: ms,
		logger:      l,
		results:     make(map[resultKey]*PollResult),
	}
}

// Run polls once immediately and then on every tick until ctx is done.
func (p *RewardsPoller) Run(ctx context.Context) error {
	p.logger.Sugar().Infow("Starting rewards poller",
		zap.Duration("interval", p.config.Interval),
		zap.Int("concurrency", p.config.Concurrency),
	)
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil {
			p.logger.Sugar().Errorw("Rewards poll cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.logger.Sugar().Infow("Stopping rewards poller")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce refreshes every service the source lists. Failures of individual services are
// recorded in their results; only a failure to list services is returned.
func (p *RewardsPoller) PollOnce(ctx context.Context) (*CycleSummary, error) {
	start := time.Now()
	cycleId := uuid.New().String()

	services, err := p.source.ListWatchedServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched services: %w", err)
	}
	p.prune(services)

	summary := &CycleSummary{CycleId: cycleId, Services: len(services)}
	var summaryMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, svc := range services {
		g.Go(func() error {
			ok := p.refresh(gctx, cycleId, svc)
			summaryMu.Lock()
			if ok {
				summary.Ok++
			} else {
				summary.Failed++
			}
			summaryMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	p.recordCycle(summary)

	p.logger.Sugar().Infow("Completed rewards poll cycle",
		zap.String("cycleId", cycleId),
		zap.Int("services", summary.Services),
		zap.Int("ok", summary.Ok),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (p *RewardsPoller) retryConfig(svc stakingTypes.WatchedService) *retry.RetryConfig {
	cfg := retry.DefaultRetryConfig()
	cfg.MaxRetries = p.config.MaxRetries
	if p.config.RetryBaseDelay > 0 {
		cfg.BaseDelay = p.config.RetryBaseDelay
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.logger.Sugar().Debugw("Retrying rewards snapshot",
			zap.String("service", svc.String()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return cfg
}

func (p *RewardsPoller) refresh(ctx context.Context, cycleId string, svc stakingTypes.WatchedService) bool {
	var snapshot *stakingTypes.StakingRewardsSnapshot

	agg, err := p.aggregators.ForProgram(svc.ChainId, svc.ProgramId)
	if err == nil {
		var res *retry.RetryResult
		snapshot, res = retry.RetryWithValue(ctx, p.retryConfig(svc), func(ctx context.Context) (*stakingTypes.StakingRewardsSnapshot, error) {
			return agg.GetStakingRewardsSnapshot(ctx, svc.Service, svc.ProgramId)
		})
		err = res.LastError
	}

	if err != nil {
		p.logger.Sugar().Warnw("Failed to refresh rewards snapshot",
			zap.String("cycleId", cycleId),
			zap.String("service", svc.String()),
			zap.String("kind", string(stakingTypes.ClassifyError(err))),
			zap.Error(err),
		)
	}
	p.store(cycleId, svc, snapshot, err)
	return err == nil
}

func (p *RewardsPoller) store(cycleId string, svc stakingTypes.WatchedService, snapshot *stakingTypes.StakingRewardsSnapshot, err error) {
	now := p.config.Clock()
	key := keyOf(svc)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		p.results[key] = &PollResult{
			Service:       svc,
			Snapshot:      snapshot,
			UpdatedAt:     now,
			LastAttemptAt: now,
			CycleId:       cycleId,
		}
		return
	}

	result := &PollResult{
		Service:       svc,
		ErrorKind:     stakingTypes.ClassifyError(err),
		Error:         err.Error(),
		LastAttemptAt: now,
		CycleId:       cycleId,
	}
	if prev, ok := p.results[key]; ok && prev.Snapshot != nil {
		result.Snapshot = prev.Snapshot
		result.UpdatedAt = prev.UpdatedAt
		result.Stale = true
	}
	p.results[key] = result
}

// prune drops results of services the source no longer lists.
func (p *RewardsPoller) prune(services []stakingTypes.WatchedService) {
	listed := make(map[resultKey]struct{}, len(services))
	for _, s := range services {
		listed[keyOf(s)] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.results {
		if _, ok := listed[key]; !ok {
			delete(p.results, key)
		}
	}
}

func (p *RewardsPoller) recordCycle(summary *CycleSummary) {
	counts := map[string]int{"ok": 0, "stale": 0, "error": 0}
	for _, r := range p.Latest() {
		switch {
		case r.Error == "":
			counts["ok"]++
		case r.Stale:
			counts["stale"]++
		default:
			counts["error"]++
		}
	}
	for state, n := range counts {
		p.metricsSink.Gauge(metricsTypes.Metric_Gauge_PollerServices, float64(n), []metricsTypes.MetricsLabel{
			{Name: "state", Value: state},
		})
	}
	p.metricsSink.Timing(metricsTypes.Metric_Timing_PollerCycleDuration, summary.Duration, nil)
}

// Latest returns a copy of every result, ordered by chain, program and service id.
func (p *RewardsPoller) Latest() []*PollResult {
	p.mu.RLock()
	out := make([]*PollResult, 0, len(p.results))
	for _, r := range p.results {
		c := *r
		out = append(out, &c)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Service, out[j].Service
		if a.ChainId != b.ChainId {
			return a.ChainId < b.ChainId
		}
		if a.ProgramId != b.ProgramId {
			return a.ProgramId < b.ProgramId
		}
		return a.Service.ServiceId < b.Service.ServiceId
	})
	return out
}

// Get returns the latest result for one service.
func (p *RewardsPoller) Get(chainId uint64, programId string, serviceId uint64) (*PollResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[resultKey{chainId: chainId, programId: programId, serviceId: serviceId}]
	if !ok {
		return nil, false
	}
	c := *r
	return &c, true
}
