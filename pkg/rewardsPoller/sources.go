package rewardsPoller

import (
	"context"

	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/clients/middleware"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"go.uber.org/zap"
)

// ServiceSource supplies the services to refresh on each cycle.
type ServiceSource interface {
	ListWatchedServices(ctx context.Context) ([]stakingTypes.WatchedService, error)
}

// StaticServiceSource serves a fixed list of services from configuration.
type StaticServiceSource struct {
	services []stakingTypes.WatchedService
}

func NewStaticServiceSource(services []config.StaticService) *StaticServiceSource {
	watched := make([]stakingTypes.WatchedService, 0, len(services))
	for _, s := range services {
		watched = append(watched, stakingTypes.WatchedService{
			ChainId:   s.ChainId,
			ProgramId: s.ProgramId,
			Service: stakingTypes.ServiceIdentity{
				ServiceId: s.ServiceId,
				Multisig:  s.Multisig,
			},
		})
	}
	return &StaticServiceSource{services: watched}
}

func (s *StaticServiceSource) ListWatchedServices(ctx context.Context) ([]stakingTypes.WatchedService, error) {
	out := make([]stakingTypes.WatchedService, len(s.services))
	copy(out, s.services)
	return out, nil
}

// MiddlewareServiceSource asks the service backend which services are deployed.
type MiddlewareServiceSource struct {
	client   *middleware.Client
	registry *chainRegistry.ChainRegistry
	logger   *zap.Logger
}

func NewMiddlewareServiceSource(client *middleware.Client, registry *chainRegistry.ChainRegistry, l *zap.Logger) *MiddlewareServiceSource {
	return &MiddlewareServiceSource{
		client:   client,
		registry: registry,
		logger:   l,
	}
}

func (s *MiddlewareServiceSource) ListWatchedServices(ctx context.Context) ([]stakingTypes.WatchedService, error) {
	services, err := s.client.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	return middleware.ToWatchedServices(services, s.registry, s.logger), nil
}
