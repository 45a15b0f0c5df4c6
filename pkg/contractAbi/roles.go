package contractAbi

// Minimal ABI fragments for the read-only calls made against each contract role.

const StakingTokenAbi = `[
	{"type":"function","name":"getServiceInfo","stateMutability":"view",
		"inputs":[{"name":"serviceId","type":"uint256"}],
		"outputs":[{"name":"sInfo","type":"tuple","components":[
			{"name":"multisig","type":"address"},
			{"name":"owner","type":"address"},
			{"name":"nonces","type":"uint256[]"},
			{"name":"tsStart","type":"uint256"},
			{"name":"reward","type":"uint256"},
			{"name":"inactivity","type":"uint256"}
		]}]},
	{"type":"function","name":"getStakingState","stateMutability":"view",
		"inputs":[{"name":"serviceId","type":"uint256"}],
		"outputs":[{"name":"stakingState","type":"uint8"}]},
	{"type":"function","name":"calculateStakingReward","stateMutability":"view",
		"inputs":[{"name":"serviceId","type":"uint256"}],
		"outputs":[{"name":"reward","type":"uint256"}]},
	{"type":"function","name":"getServiceIds","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"livenessPeriod","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rewardsPerSecond","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"minStakingDeposit","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"minStakingDuration","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"maxNumServices","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tsCheckpoint","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"epochCounter","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"availableRewards","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"activityChecker","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const ActivityCheckerAbi = `[
	{"type":"function","name":"livenessRatio","stateMutability":"view",
		"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getMultisigNonces","stateMutability":"view",
		"inputs":[{"name":"multisig","type":"address"}],
		"outputs":[{"name":"nonces","type":"uint256[]"}]}
]`

const ServiceRegistryAbi = `[
	{"type":"function","name":"mapServices","stateMutability":"view",
		"inputs":[{"name":"","type":"uint256"}],
		"outputs":[
			{"name":"securityDeposit","type":"uint96"},
			{"name":"multisig","type":"address"},
			{"name":"configHash","type":"bytes32"},
			{"name":"threshold","type":"uint32"},
			{"name":"maxNumAgentInstances","type":"uint32"},
			{"name":"numAgentInstances","type":"uint32"},
			{"name":"state","type":"uint8"}
		]}
]`

const ServiceRegistryTokenUtilityAbi = `[
	{"type":"function","name":"mapServiceIdTokenDeposit","stateMutability":"view",
		"inputs":[{"name":"","type":"uint256"}],
		"outputs":[
			{"name":"token","type":"address"},
			{"name":"securityDeposit","type":"uint96"}
		]},
	{"type":"function","name":"getAgentBond","stateMutability":"view",
		"inputs":[{"name":"serviceId","type":"uint256"},{"name":"agentId","type":"uint256"}],
		"outputs":[{"name":"bond","type":"uint256"}]}
]`

const Multicall3Abi = `[
	{"type":"function","name":"aggregate3","stateMutability":"payable",
		"inputs":[{"name":"calls","type":"tuple[]","components":[
			{"name":"target","type":"address"},
			{"name":"allowFailure","type":"bool"},
			{"name":"callData","type":"bytes"}
		]}],
		"outputs":[{"name":"returnData","type":"tuple[]","components":[
			{"name":"success","type":"bool"},
			{"name":"returnData","type":"bytes"}
		]}]}
]`
