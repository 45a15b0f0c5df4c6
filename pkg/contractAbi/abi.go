package contractAbi

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap"
)

// ContractRole is the function a contract plays for a staking program.
type ContractRole string

const (
	ContractRole_StakingInstance             ContractRole = "StakingInstance"
	ContractRole_ActivityChecker             ContractRole = "ActivityChecker"
	ContractRole_ServiceRegistry             ContractRole = "ServiceRegistry"
	ContractRole_ServiceRegistryTokenUtility ContractRole = "ServiceRegistryTokenUtility"
	ContractRole_Multicall3                  ContractRole = "Multicall3"
)

var roleAbis = map[ContractRole]string{
	ContractRole_StakingInstance:             StakingTokenAbi,
	ContractRole_ActivityChecker:             ActivityCheckerAbi,
	ContractRole_ServiceRegistry:             ServiceRegistryAbi,
	ContractRole_ServiceRegistryTokenUtility: ServiceRegistryTokenUtilityAbi,
	ContractRole_Multicall3:                  Multicall3Abi,
}

// IsProgramRole reports whether contracts with this role differ per staking program.
func (r ContractRole) IsProgramRole() bool {
	return r == ContractRole_StakingInstance || r == ContractRole_ActivityChecker
}

func ParseContractRole(s string) (ContractRole, error) {
	r := ContractRole(s)
	if _, ok := roleAbis[r]; !ok {
		return "", fmt.Errorf("unknown contract role '%s'", s)
	}
	return r, nil
}

// UnmarshalJsonToAbi unmarshals a JSON ABI string into an abi.ABI struct.
// It handles certain common unmarshaling errors that can be safely ignored,
// such as "only single receive is allowed" and "only single fallback is allowed".
// Returns the parsed ABI and any error encountered during parsing.
func UnmarshalJsonToAbi(json string, l *zap.Logger) (*abi.ABI, error) {
	a := &abi.ABI{}

	err := a.UnmarshalJSON([]byte(json))

	if err != nil {
		foundMatch := false
		// patterns that we're fine to ignore and not treat as an error
		patterns := []*regexp.Regexp{
			regexp.MustCompile(`only single receive is allowed`),
			regexp.MustCompile(`only single fallback is allowed`),
		}

		for _, pattern := range patterns {
			if pattern.MatchString(err.Error()) {
				foundMatch = true
				break
			}
		}

		// If the error isnt one that we can ignore, return it
		if !foundMatch {
			l.Sugar().Warnw("Error unmarshaling abi json", zap.Error(err))
			return nil, err
		}
	}

	return a, nil
}

// LoadRoleAbis parses the embedded ABI fragment of every contract role.
func LoadRoleAbis(l *zap.Logger) (map[ContractRole]*abi.ABI, error) {
	abis := make(map[ContractRole]*abi.ABI, len(roleAbis))
	for role, json := range roleAbis {
		a, err := UnmarshalJsonToAbi(json, l)
		if err != nil {
			return nil, fmt.Errorf("failed to parse abi for role %s: %w", role, err)
		}
		abis[role] = a
	}
	return abis, nil
}
