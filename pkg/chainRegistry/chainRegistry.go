// Package chainRegistry is the static lookup from chain ids, contract roles and staking
// program ids to chain endpoints and contract references.
//
// A ChainRegistry is built once at startup and never mutated afterwards, so it is safe
// to share between goroutines without locking.
package chainRegistry

import (
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/contractAbi"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// DefaultMulticall3Address is the canonical Multicall3 deployment shared by every chain we support.
var DefaultMulticall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

type chain struct {
	endpoint  *ChainEndpoint
	contracts map[contractAbi.ContractRole]*ContractRef
	programs  *orderedmap.OrderedMap[string, *StakingProgram]
}

type ChainRegistry struct {
	chains   *orderedmap.OrderedMap[uint64, *chain]
	families *orderedmap.OrderedMap[stakingTypes.AgentFamily, *AgentFamily]
	logger   *zap.Logger
}

// LoadChainRegistry builds the registry from the yaml file at path, or from the embedded
// table when path is empty. rpcOverrides replaces the configured RPC url per chain id.
func LoadChainRegistry(path string, rpcOverrides map[uint64]string, l *zap.Logger) (*ChainRegistry, error) {
	raw := embeddedRegistry
	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry file '%s': %w", path, err)
		}
		raw = contents
	}
	return NewChainRegistry(raw, rpcOverrides, l)
}

// NewChainRegistry parses and validates a yaml registry table.
func NewChainRegistry(raw []byte, rpcOverrides map[uint64]string, l *zap.Logger) (*ChainRegistry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	abis, err := contractAbi.LoadRoleAbis(l)
	if err != nil {
		return nil, err
	}

	r := &ChainRegistry{
		chains:   orderedmap.New[uint64, *chain](),
		families: orderedmap.New[stakingTypes.AgentFamily, *AgentFamily](),
		logger:   l,
	}

	for _, f := range file.AgentFamilies {
		if f.Name == "" {
			return nil, fmt.Errorf("agent family with empty name")
		}
		if f.ActivityNonceIndex < 0 {
			return nil, fmt.Errorf("agent family '%s' has negative activity nonce index", f.Name)
		}
		name := stakingTypes.AgentFamily(f.Name)
		if _, found := r.families.Get(name); found {
			return nil, fmt.Errorf("duplicate agent family '%s'", f.Name)
		}
		r.families.Set(name, &AgentFamily{
			Name:                         name,
			ActivityNonceIndex:           f.ActivityNonceIndex,
			RequiredActivitySafetyMargin: big.NewInt(f.RequiredActivitySafetyMargin),
		})
	}

	for _, c := range file.Chains {
		if _, found := r.chains.Get(c.ChainId); found {
			return nil, fmt.Errorf("duplicate chain id %d", c.ChainId)
		}
		parsed, err := r.buildChain(c, abis, rpcOverrides)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", c.ChainId, err)
		}
		r.chains.Set(c.ChainId, parsed)
	}

	for chainId := range rpcOverrides {
		if _, found := r.chains.Get(chainId); !found {
			l.Sugar().Warnw("RPC url override for unconfigured chain ignored", zap.Uint64("chainId", chainId))
		}
	}

	l.Sugar().Debugw("Loaded chain registry",
		zap.Int("chains", r.chains.Len()),
		zap.Int("agentFamilies", r.families.Len()),
	)
	return r, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("malformed address '%s'", value)
	}
	addr := common.HexToAddress(value)
	if utils.IsNullAddress(addr) {
		return common.Address{}, fmt.Errorf("null address")
	}
	return addr, nil
}

func (r *ChainRegistry) buildChain(c chainEntry, abis map[contractAbi.ContractRole]*abi.ABI, rpcOverrides map[uint64]string) (*chain, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	if c.CheckpointSafetyMarginSeconds < 0 {
		return nil, fmt.Errorf("negative checkpoint safety margin")
	}

	endpoint := &ChainEndpoint{
		ChainId:                c.ChainId,
		Name:                   c.Name,
		RpcUrl:                 c.RpcUrl,
		NativeToken:            c.NativeToken,
		Multicall3:             DefaultMulticall3Address,
		CheckpointSafetyMargin: time.Duration(c.CheckpointSafetyMarginSeconds) * time.Second,
	}
	if override, ok := rpcOverrides[c.ChainId]; ok && override != "" {
		endpoint.RpcUrl = override
	}

	parsed := &chain{
		endpoint:  endpoint,
		contracts: make(map[contractAbi.ContractRole]*ContractRef),
		programs:  orderedmap.New[string, *StakingProgram](),
	}

	for roleName, address := range c.Contracts {
		role, err := contractAbi.ParseContractRole(roleName)
		if err != nil {
			return nil, err
		}
		if role.IsProgramRole() {
			return nil, fmt.Errorf("role %s must be declared per program", role)
		}
		addr, err := parseAddress(address)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", role, err)
		}
		parsed.contracts[role] = &ContractRef{ChainId: c.ChainId, Role: role, Address: addr, Abi: abis[role]}
	}
	if ref, ok := parsed.contracts[contractAbi.ContractRole_Multicall3]; ok {
		endpoint.Multicall3 = ref.Address
	} else {
		parsed.contracts[contractAbi.ContractRole_Multicall3] = &ContractRef{
			ChainId: c.ChainId,
			Role:    contractAbi.ContractRole_Multicall3,
			Address: DefaultMulticall3Address,
			Abi:     abis[contractAbi.ContractRole_Multicall3],
		}
	}

	for _, p := range c.Programs {
		if p.Id == "" {
			return nil, fmt.Errorf("program with empty id")
		}
		if _, found := parsed.programs.Get(p.Id); found {
			return nil, fmt.Errorf("duplicate program id '%s'", p.Id)
		}
		stakingAddr, err := parseAddress(p.StakingInstance)
		if err != nil {
			return nil, fmt.Errorf("program %s staking instance: %w", p.Id, err)
		}
		checkerAddr, err := parseAddress(p.ActivityChecker)
		if err != nil {
			return nil, fmt.Errorf("program %s activity checker: %w", p.Id, err)
		}
		if len(p.AgentsSupported) == 0 {
			return nil, fmt.Errorf("program %s supports no agent family", p.Id)
		}
		families := make([]stakingTypes.AgentFamily, 0, len(p.AgentsSupported))
		for _, f := range p.AgentsSupported {
			family := stakingTypes.AgentFamily(f)
			if _, found := r.families.Get(family); !found {
				return nil, fmt.Errorf("program %s references unknown agent family '%s'", p.Id, f)
			}
			families = append(families, family)
		}
		decimals := p.TokenDecimals
		if decimals == 0 {
			decimals = 18
		}

		parsed.programs.Set(p.Id, &StakingProgram{
			Id:      p.Id,
			Name:    p.Name,
			ChainId: c.ChainId,
			StakingInstance: &ContractRef{
				ChainId: c.ChainId,
				Role:    contractAbi.ContractRole_StakingInstance,
				Address: stakingAddr,
				Abi:     abis[contractAbi.ContractRole_StakingInstance],
			},
			ActivityChecker: &ContractRef{
				ChainId: c.ChainId,
				Role:    contractAbi.ContractRole_ActivityChecker,
				Address: checkerAddr,
				Abi:     abis[contractAbi.ContractRole_ActivityChecker],
			},
			Token:             stakingTypes.Token{Symbol: p.TokenSymbol, Decimals: decimals},
			NumAgentInstances: p.NumAgentInstances,
			AgentId:           p.AgentId,
			AgentsSupported:   families,
			Deprecated:        p.Deprecated,
		})
	}
	return parsed, nil
}

func (r *ChainRegistry) getChain(chainId uint64) (*chain, error) {
	c, found := r.chains.Get(chainId)
	if !found {
		return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "chain %d", chainId)
	}
	return c, nil
}

func (r *ChainRegistry) GetChain(chainId uint64) (*ChainEndpoint, error) {
	c, err := r.getChain(chainId)
	if err != nil {
		return nil, err
	}
	return c.endpoint, nil
}

func (r *ChainRegistry) GetChainByName(name string) (*ChainEndpoint, error) {
	for pair := r.chains.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.endpoint.Name == name {
			return pair.Value.endpoint, nil
		}
	}
	return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "chain '%s'", name)
}

// ListChains returns every chain in declaration order.
func (r *ChainRegistry) ListChains() []*ChainEndpoint {
	chains := make([]*ChainEndpoint, 0, r.chains.Len())
	for pair := r.chains.Oldest(); pair != nil; pair = pair.Next() {
		chains = append(chains, pair.Value.endpoint)
	}
	return chains
}

func (r *ChainRegistry) GetStakingProgram(chainId uint64, programId string) (*StakingProgram, error) {
	c, err := r.getChain(chainId)
	if err != nil {
		return nil, err
	}
	p, found := c.programs.Get(programId)
	if !found {
		return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "program '%s' on chain %d", programId, chainId)
	}
	return p, nil
}

// ListStakingPrograms returns the chain's programs in declaration order.
func (r *ChainRegistry) ListStakingPrograms(chainId uint64) ([]*StakingProgram, error) {
	c, err := r.getChain(chainId)
	if err != nil {
		return nil, err
	}
	programs := make([]*StakingProgram, 0, c.programs.Len())
	for pair := c.programs.Oldest(); pair != nil; pair = pair.Next() {
		programs = append(programs, pair.Value)
	}
	return programs, nil
}

// GetContractRef resolves a contract by role. programId is only consulted for
// per-program roles (StakingInstance, ActivityChecker).
func (r *ChainRegistry) GetContractRef(chainId uint64, role contractAbi.ContractRole, programId string) (*ContractRef, error) {
	if role.IsProgramRole() {
		p, err := r.GetStakingProgram(chainId, programId)
		if err != nil {
			return nil, err
		}
		if role == contractAbi.ContractRole_StakingInstance {
			return p.StakingInstance, nil
		}
		return p.ActivityChecker, nil
	}
	c, err := r.getChain(chainId)
	if err != nil {
		return nil, err
	}
	ref, ok := c.contracts[role]
	if !ok {
		return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "contract %s on chain %d", role, chainId)
	}
	return ref, nil
}

func (r *ChainRegistry) GetAgentFamily(name stakingTypes.AgentFamily) (*AgentFamily, error) {
	f, found := r.families.Get(name)
	if !found {
		return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "agent family '%s'", name)
	}
	return f, nil
}

// ListAgentFamilies returns the families in declaration order.
func (r *ChainRegistry) ListAgentFamilies() []*AgentFamily {
	families := make([]*AgentFamily, 0, r.families.Len())
	for pair := r.families.Oldest(); pair != nil; pair = pair.Next() {
		families = append(families, pair.Value)
	}
	return families
}
