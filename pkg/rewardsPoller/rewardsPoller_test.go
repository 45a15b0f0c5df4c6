package rewardsPoller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/rewards"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAggregator returns scripted snapshot outcomes per service id, in order. The last
// outcome repeats once the script is exhausted.
type fakeAggregator struct {
	rewards.StakedAgentAggregator

	mu       sync.Mutex
	outcomes map[uint64][]error
	calls    map[uint64]int
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{
		outcomes: make(map[uint64][]error),
		calls:    make(map[uint64]int),
	}
}

func (f *fakeAggregator) script(serviceId uint64, outcomes ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[serviceId] = outcomes
	f.calls[serviceId] = 0
}

func (f *fakeAggregator) callCount(serviceId uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[serviceId]
}

func (f *fakeAggregator) GetStakingRewardsSnapshot(ctx context.Context, service stakingTypes.ServiceIdentity, programId string) (*stakingTypes.StakingRewardsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[service.ServiceId]
	f.calls[service.ServiceId]++

	var err error
	if outcomes := f.outcomes[service.ServiceId]; len(outcomes) > 0 {
		if n >= len(outcomes) {
			n = len(outcomes) - 1
		}
		err = outcomes[n]
	}
	if err != nil {
		return nil, err
	}
	return &stakingTypes.StakingRewardsSnapshot{
		ProgramId:                programId,
		ServiceId:                service.ServiceId,
		AvailableRewardsForEpoch: big.NewInt(int64(f.calls[service.ServiceId])),
		IsEligibleForRewards:     true,
	}, nil
}

type fakeResolver struct {
	agg *fakeAggregator
}

func (r *fakeResolver) ForProgram(chainId uint64, programId string) (rewards.StakedAgentAggregator, error) {
	if programId == "does-not-exist" {
		return nil, fmt.Errorf("%w: %s", stakingTypes.ErrProgramNotFound, programId)
	}
	return r.agg, nil
}

type mutableSource struct {
	mu       sync.Mutex
	services []stakingTypes.WatchedService
	err      error
}

func (s *mutableSource) set(services []stakingTypes.WatchedService, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = services
	s.err = err
}

func (s *mutableSource) ListWatchedServices(ctx context.Context) ([]stakingTypes.WatchedService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.services, s.err
}

func watched(chainId uint64, programId string, serviceId uint64) stakingTypes.WatchedService {
	return stakingTypes.WatchedService{
		ChainId:   chainId,
		ProgramId: programId,
		Service: stakingTypes.ServiceIdentity{
			ServiceId: serviceId,
			Multisig:  common.BigToAddress(new(big.Int).SetUint64(serviceId)),
		},
	}
}

var unavailable = fmt.Errorf("%w: connection refused", stakingTypes.ErrRpcUnavailable)

func setup(t *testing.T, source ServiceSource) (*RewardsPoller, *fakeAggregator) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	agg := newFakeAggregator()
	now := time.Unix(1_700_000_000, 0)
	poller := NewRewardsPoller(&PollerConfig{
		Interval:       10 * time.Millisecond,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Concurrency:    2,
		Clock:          func() time.Time { return now },
	}, source, &fakeResolver{agg: agg}, nil, l)
	return poller, agg
}

func Test_RewardsPoller(t *testing.T) {
	t.Run("Should store one result per service sorted by chain, program and service", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{
			watched(8453, "meme_base_beta", 3),
			watched(100, "pearl_beta_2", 9),
			watched(100, "pearl_beta", 12),
			watched(100, "pearl_beta", 2),
		}, nil)
		poller, _ := setup(t, source)

		summary, err := poller.PollOnce(context.Background())
		require.Nil(t, err)
		assert.Equal(t, 4, summary.Services)
		assert.Equal(t, 4, summary.Ok)
		assert.NotEmpty(t, summary.CycleId)

		latest := poller.Latest()
		require.Len(t, latest, 4)
		order := make([]string, 0, len(latest))
		for _, r := range latest {
			order = append(order, r.Service.String())
			assert.NotNil(t, r.Snapshot)
			assert.False(t, r.Stale)
			assert.Equal(t, summary.CycleId, r.CycleId)
		}
		assert.Equal(t, []string{"100/pearl_beta/2", "100/pearl_beta/12", "100/pearl_beta_2/9", "8453/meme_base_beta/3"}, order)
	})
	t.Run("Should retry unavailable errors at most max retries times", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1)}, nil)
		poller, agg := setup(t, source)
		agg.script(1, unavailable)

		summary, err := poller.PollOnce(context.Background())
		require.Nil(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 3, agg.callCount(1))

		r, ok := poller.Get(100, "pearl_beta", 1)
		require.True(t, ok)
		assert.Nil(t, r.Snapshot)
		assert.Equal(t, stakingTypes.ErrorKind_Unavailable, r.ErrorKind)
	})
	t.Run("Should recover when a retry succeeds", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1)}, nil)
		poller, agg := setup(t, source)
		agg.script(1, unavailable, nil)

		summary, err := poller.PollOnce(context.Background())
		require.Nil(t, err)
		assert.Equal(t, 1, summary.Ok)
		assert.Equal(t, 2, agg.callCount(1))
	})
	t.Run("Should never retry errors that are not retryable", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{
			watched(100, "pearl_beta", 1),
			watched(100, "does-not-exist", 2),
		}, nil)
		poller, agg := setup(t, source)
		agg.script(1, fmt.Errorf("%w: reverted", stakingTypes.ErrCallEncoding))

		_, err := poller.PollOnce(context.Background())
		require.Nil(t, err)
		assert.Equal(t, 1, agg.callCount(1))
		assert.Equal(t, 0, agg.callCount(2))

		r, ok := poller.Get(100, "does-not-exist", 2)
		require.True(t, ok)
		assert.Equal(t, stakingTypes.ErrorKind_Unsupported, r.ErrorKind)

		r, ok = poller.Get(100, "pearl_beta", 1)
		require.True(t, ok)
		assert.Equal(t, stakingTypes.ErrorKind_Internal, r.ErrorKind)
	})
	t.Run("Should keep the last good snapshot and mark it stale on failure", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1)}, nil)
		poller, agg := setup(t, source)

		_, err := poller.PollOnce(context.Background())
		require.Nil(t, err)
		good, ok := poller.Get(100, "pearl_beta", 1)
		require.True(t, ok)
		require.NotNil(t, good.Snapshot)

		agg.script(1, unavailable)
		_, err = poller.PollOnce(context.Background())
		require.Nil(t, err)

		r, ok := poller.Get(100, "pearl_beta", 1)
		require.True(t, ok)
		assert.True(t, r.Stale)
		assert.Same(t, good.Snapshot, r.Snapshot)
		assert.Equal(t, good.UpdatedAt, r.UpdatedAt)
		assert.Equal(t, stakingTypes.ErrorKind_Unavailable, r.ErrorKind)
		assert.NotEmpty(t, r.Error)
		assert.True(t, r.Snapshot.IsEligibleForRewards)
	})
	t.Run("Should keep results when the service source fails", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1)}, nil)
		poller, _ := setup(t, source)

		_, err := poller.PollOnce(context.Background())
		require.Nil(t, err)

		source.set(nil, unavailable)
		_, err = poller.PollOnce(context.Background())
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
		assert.Len(t, poller.Latest(), 1)
	})
	t.Run("Should drop services the source stops listing", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1), watched(100, "pearl_beta", 2)}, nil)
		poller, _ := setup(t, source)

		_, err := poller.PollOnce(context.Background())
		require.Nil(t, err)

		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 2)}, nil)
		_, err = poller.PollOnce(context.Background())
		require.Nil(t, err)

		latest := poller.Latest()
		require.Len(t, latest, 1)
		assert.Equal(t, uint64(2), latest[0].Service.Service.ServiceId)
	})
	t.Run("Should poll until the context is canceled", func(t *testing.T) {
		source := &mutableSource{}
		source.set([]stakingTypes.WatchedService{watched(100, "pearl_beta", 1)}, nil)
		poller, agg := setup(t, source)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- poller.Run(ctx) }()

		assert.Eventually(t, func() bool { return agg.callCount(1) >= 2 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.Nil(t, err)
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	})
}

func Test_StaticServiceSource(t *testing.T) {
	t.Run("Should list configured services", func(t *testing.T) {
		multisig := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		source := NewStaticServiceSource([]config.StaticService{
			{ChainId: 100, ProgramId: "pearl_beta", ServiceId: 42, Multisig: multisig},
		})

		services, err := source.ListWatchedServices(context.Background())
		assert.Nil(t, err)
		assert.Equal(t, []stakingTypes.WatchedService{{
			ChainId:   100,
			ProgramId: "pearl_beta",
			Service:   stakingTypes.ServiceIdentity{ServiceId: 42, Multisig: multisig},
		}}, services)
	})
}
