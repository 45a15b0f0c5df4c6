package rpcServer

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/rewardsPoller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"github.com/pkg/errors"
)

func parseChainId(c echo.Context) (uint64, error) {
	raw := c.Param("chainId")
	chainId, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(stakingTypes.ErrInvalidArgument, "chain id '%s'", raw)
	}
	return chainId, nil
}

func parseServiceId(c echo.Context) (uint64, error) {
	raw := c.Param("serviceId")
	serviceId, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(stakingTypes.ErrInvalidArgument, "service id '%s'", raw)
	}
	return serviceId, nil
}

// parseService reads the service id from the path and the multisig from the query. The
// multisig may be omitted when requireMultisig is false.
func parseService(c echo.Context, requireMultisig bool) (stakingTypes.ServiceIdentity, error) {
	serviceId, err := parseServiceId(c)
	if err != nil {
		return stakingTypes.ServiceIdentity{}, err
	}
	service := stakingTypes.ServiceIdentity{ServiceId: serviceId}

	raw := strings.TrimSpace(c.QueryParam("multisig"))
	if raw == "" {
		if requireMultisig {
			return service, errors.Wrap(stakingTypes.ErrInvalidArgument, "multisig is required")
		}
		return service, nil
	}
	if !common.IsHexAddress(raw) {
		return service, errors.Wrapf(stakingTypes.ErrInvalidArgument, "multisig '%s'", raw)
	}
	service.Multisig = common.HexToAddress(raw)
	return service, nil
}

func (rpc *RpcServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (rpc *RpcServer) handleListChains(c echo.Context) error {
	chains := utils.Map(rpc.registry.ListChains(), func(chain *chainRegistry.ChainEndpoint, i uint64) *ChainResponse {
		return NewChainResponse(chain)
	})
	return c.JSON(http.StatusOK, chains)
}

func (rpc *RpcServer) handleListPrograms(c echo.Context) error {
	chainId, err := parseChainId(c)
	if err != nil {
		return err
	}
	programs, err := rpc.registry.ListStakingPrograms(chainId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, utils.Map(programs, func(p *chainRegistry.StakingProgram, i uint64) *ProgramResponse {
		return NewProgramResponse(p)
	}))
}

func (rpc *RpcServer) handleGetContractDetails(c echo.Context) error {
	chainId, err := parseChainId(c)
	if err != nil {
		return err
	}
	programId := c.Param("programId")
	agg, err := rpc.aggregators.ForProgram(chainId, programId)
	if err != nil {
		return err
	}
	details, err := agg.GetStakingContractDetails(c.Request().Context(), programId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewContractDetailsResponse(details))
}

func (rpc *RpcServer) handleGetRewardsSnapshot(c echo.Context) error {
	chainId, err := parseChainId(c)
	if err != nil {
		return err
	}
	service, err := parseService(c, true)
	if err != nil {
		return err
	}
	programId := c.Param("programId")
	agg, err := rpc.aggregators.ForProgram(chainId, programId)
	if err != nil {
		return err
	}
	snapshot, err := agg.GetStakingRewardsSnapshot(c.Request().Context(), service, programId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewSnapshotResponse(snapshot))
}

func (rpc *RpcServer) handleGetServiceStaking(c echo.Context) error {
	chainId, err := parseChainId(c)
	if err != nil {
		return err
	}
	service, err := parseService(c, false)
	if err != nil {
		return err
	}
	programId := c.Param("programId")
	agg, err := rpc.aggregators.ForProgram(chainId, programId)
	if err != nil {
		return err
	}
	details, err := agg.GetServiceStakingDetails(c.Request().Context(), service, programId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewServiceStakingResponse(details))
}

func (rpc *RpcServer) handleGetServiceRegistry(c echo.Context) error {
	chainId, err := parseChainId(c)
	if err != nil {
		return err
	}
	service, err := parseService(c, false)
	if err != nil {
		return err
	}
	programId := c.Param("programId")
	agg, err := rpc.aggregators.ForProgram(chainId, programId)
	if err != nil {
		return err
	}
	info, err := agg.GetServiceRegistryInfo(c.Request().Context(), service, programId)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewServiceRegistryResponse(info))
}

func (rpc *RpcServer) handleListSnapshots(c echo.Context) error {
	if rpc.snapshots == nil {
		return c.JSON(http.StatusOK, []*PollResultResponse{})
	}
	return c.JSON(http.StatusOK, utils.Map(rpc.snapshots.Latest(), func(res *rewardsPoller.PollResult, i uint64) *PollResultResponse {
		return NewPollResultResponse(res)
	}))
}
