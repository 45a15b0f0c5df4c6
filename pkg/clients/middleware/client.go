// Package middleware reads the services an operator runs from the local service backend.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"go.uber.org/zap"
)

const servicesPath = "/api/v2/services"

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

type UserParams struct {
	StakingProgramId string `json:"staking_program_id"`
}

type ChainData struct {
	// Token is the on-chain service id, or a negative value before the service is minted.
	Token      int64      `json:"token"`
	Multisig   string     `json:"multisig"`
	Staked     bool       `json:"staked"`
	UserParams UserParams `json:"user_params"`
}

type ChainConfig struct {
	ChainData ChainData `json:"chain_data"`
}

type Service struct {
	ServiceConfigId string                 `json:"service_config_id"`
	Name            string                 `json:"name"`
	HomeChain       string                 `json:"home_chain"`
	ChainConfigs    map[string]ChainConfig `json:"chain_configs"`
}

func NewClient(baseURL string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  l,
	}
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

// ListServices fetches every service the backend manages.
func (c *Client) ListServices(ctx context.Context) ([]*Service, error) {
	url := c.baseURL + servicesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	c.logger.Sugar().Debugw("Making middleware request", zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make request: %v", stakingTypes.ErrRpcUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", stakingTypes.ErrRpcUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: middleware request failed with status %d: %s", stakingTypes.ErrRpcUnavailable, resp.StatusCode, string(body))
	}

	var services []*Service
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", stakingTypes.ErrRpcUnavailable, err)
	}
	return services, nil
}

// ToWatchedServices flattens services into one entry per chain they are deployed on.
// Chains and programs the registry does not know, and services that are not minted yet,
// are skipped.
func ToWatchedServices(services []*Service, registry *chainRegistry.ChainRegistry, l *zap.Logger) []stakingTypes.WatchedService {
	watched := make([]stakingTypes.WatchedService, 0, len(services))
	for _, svc := range services {
		for chainName, cfg := range svc.ChainConfigs {
			data := cfg.ChainData
			fields := []zap.Field{
				zap.String("service", svc.ServiceConfigId),
				zap.String("chain", chainName),
			}

			chain, err := registry.GetChainByName(chainName)
			if err != nil {
				l.Debug("Skipping service on unsupported chain", fields...)
				continue
			}
			if data.Token <= 0 {
				l.Debug("Skipping service that is not minted yet", fields...)
				continue
			}
			if _, err := registry.GetStakingProgram(chain.ChainId, data.UserParams.StakingProgramId); err != nil {
				l.Info("Skipping service with unknown staking program",
					append(fields, zap.String("programId", data.UserParams.StakingProgramId))...)
				continue
			}

			var multisig common.Address
			if data.Multisig != "" {
				if !common.IsHexAddress(data.Multisig) {
					l.Warn("Skipping service with malformed multisig",
						append(fields, zap.String("multisig", data.Multisig))...)
					continue
				}
				multisig = common.HexToAddress(data.Multisig)
			}
			if utils.IsNullAddress(multisig) {
				l.Debug("Service has no multisig yet", fields...)
			}

			watched = append(watched, stakingTypes.WatchedService{
				ChainId:   chain.ChainId,
				ProgramId: data.UserParams.StakingProgramId,
				Service: stakingTypes.ServiceIdentity{
					ServiceId: uint64(data.Token),
					Multisig:  multisig,
				},
				Name: svc.Name,
			})
		}
	}
	return watched
}
