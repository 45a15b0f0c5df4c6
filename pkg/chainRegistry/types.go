package chainRegistry

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/contractAbi"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
)

// ChainEndpoint identifies one supported EVM chain.
type ChainEndpoint struct {
	ChainId     uint64
	Name        string
	RpcUrl      string
	NativeToken string
	Multicall3  common.Address

	// CheckpointSafetyMargin is added to the elapsed time since the last checkpoint
	// when computing required activity, to tolerate late checkpoints.
	CheckpointSafetyMargin time.Duration
}

// CheckpointSafetyMarginSeconds returns the margin as a big.Int number of seconds.
func (c *ChainEndpoint) CheckpointSafetyMarginSeconds() *big.Int {
	return big.NewInt(int64(c.CheckpointSafetyMargin / time.Second))
}

// ContractRef is a contract address plus the ABI fragment used to read from it.
type ContractRef struct {
	ChainId uint64
	Role    contractAbi.ContractRole
	Address common.Address
	Abi     *abi.ABI
}

type AgentFamily struct {
	Name stakingTypes.AgentFamily

	// ActivityNonceIndex selects which entry of the activity checker's nonce array counts activity.
	ActivityNonceIndex int

	// RequiredActivitySafetyMargin is added to the activity required by the liveness ratio.
	RequiredActivitySafetyMargin *big.Int
}

type StakingProgram struct {
	Id                string
	Name              string
	ChainId           uint64
	StakingInstance   *ContractRef
	ActivityChecker   *ContractRef
	Token             stakingTypes.Token
	NumAgentInstances uint64
	AgentId           uint64
	AgentsSupported   []stakingTypes.AgentFamily
	Deprecated        bool
}

func (p *StakingProgram) SupportsFamily(family stakingTypes.AgentFamily) bool {
	for _, f := range p.AgentsSupported {
		if f == family {
			return true
		}
	}
	return false
}

// MinimumStakeMultiplier is (1 + numAgentInstances), or 2 when the program leaves it unset.
func (p *StakingProgram) MinimumStakeMultiplier() *big.Int {
	if p.NumAgentInstances > 0 {
		return new(big.Int).SetUint64(1 + p.NumAgentInstances)
	}
	return big.NewInt(2)
}

// yaml representation of registry.yaml

type registryFile struct {
	AgentFamilies []agentFamilyEntry `yaml:"agentFamilies"`
	Chains        []chainEntry       `yaml:"chains"`
}

type agentFamilyEntry struct {
	Name                         string `yaml:"name"`
	ActivityNonceIndex           int    `yaml:"activityNonceIndex"`
	RequiredActivitySafetyMargin int64  `yaml:"requiredActivitySafetyMargin"`
}

type chainEntry struct {
	ChainId                       uint64            `yaml:"chainId"`
	Name                          string            `yaml:"name"`
	NativeToken                   string            `yaml:"nativeToken"`
	RpcUrl                        string            `yaml:"rpcUrl"`
	CheckpointSafetyMarginSeconds int64             `yaml:"checkpointSafetyMarginSeconds"`
	Contracts                     map[string]string `yaml:"contracts"`
	Programs                      []programEntry    `yaml:"programs"`
}

type programEntry struct {
	Id                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	StakingInstance   string   `yaml:"stakingInstance"`
	ActivityChecker   string   `yaml:"activityChecker"`
	TokenSymbol       string   `yaml:"tokenSymbol"`
	TokenDecimals     int32    `yaml:"tokenDecimals"`
	NumAgentInstances uint64   `yaml:"numAgentInstances"`
	AgentId           uint64   `yaml:"agentId"`
	AgentsSupported   []string `yaml:"agentsSupported"`
	Deprecated        bool     `yaml:"deprecated"`
}
