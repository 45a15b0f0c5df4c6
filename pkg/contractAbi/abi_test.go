package contractAbi

import (
	"testing"

	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func Test_ContractAbi(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should parse every role abi", func(t *testing.T) {
		abis, err := LoadRoleAbis(l)
		assert.Nil(t, err)
		assert.Len(t, abis, 5)

		staking := abis[ContractRole_StakingInstance]
		for _, m := range []string{"getServiceInfo", "livenessPeriod", "rewardsPerSecond", "calculateStakingReward", "minStakingDeposit", "tsCheckpoint"} {
			_, ok := staking.Methods[m]
			assert.True(t, ok, m)
		}
		_, ok := abis[ContractRole_ActivityChecker].Methods["getMultisigNonces"]
		assert.True(t, ok)
		_, ok = abis[ContractRole_Multicall3].Methods["aggregate3"]
		assert.True(t, ok)
	})
	t.Run("Should ignore duplicate receive errors", func(t *testing.T) {
		a, err := UnmarshalJsonToAbi(`[{"type":"receive","stateMutability":"payable"},{"type":"receive","stateMutability":"payable"}]`, l)
		assert.Nil(t, err)
		assert.NotNil(t, a)
	})
	t.Run("Should return an error for invalid json", func(t *testing.T) {
		_, err := UnmarshalJsonToAbi(`not json`, l)
		assert.NotNil(t, err)
	})
	t.Run("Should parse known roles and reject unknown ones", func(t *testing.T) {
		r, err := ParseContractRole("ActivityChecker")
		assert.Nil(t, err)
		assert.Equal(t, ContractRole_ActivityChecker, r)
		assert.True(t, r.IsProgramRole())
		assert.False(t, ContractRole_ServiceRegistry.IsProgramRole())

		_, err = ParseContractRole("Treasury")
		assert.NotNil(t, err)
	})
}
