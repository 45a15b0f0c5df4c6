package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/pearl-agents/staking-sidecar/pkg/rpcServer"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

var testMultisig = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func testService() stakingTypes.WatchedService {
	return stakingTypes.WatchedService{
		ChainId:   100,
		ProgramId: "pearl_beta",
		Name:      "Trader Agent",
		Service:   stakingTypes.ServiceIdentity{ServiceId: 42, Multisig: testMultisig},
	}
}

func testSnapshot() *stakingTypes.StakingRewardsSnapshot {
	return &stakingTypes.StakingRewardsSnapshot{
		ChainId:                      100,
		ProgramId:                    "pearl_beta",
		ServiceId:                    42,
		Multisig:                     testMultisig,
		Token:                        stakingTypes.Token{Symbol: "OLAS", Decimals: 18},
		TsCheckpoint:                 big.NewInt(1_700_000_000),
		AccruedServiceStakingRewards: units(3),
		MinimumStakedAmount:          units(200),
		AvailableRewardsForEpoch:     new(big.Int).Mul(big.NewInt(86400), big.NewInt(1_000_000_000_000_000)),
		RequiredActivity:             big.NewInt(3),
		ObservedActivity:             big.NewInt(5),
		HasStakingHistory:            true,
		IsEligibleForRewards:         true,
		ObservedAt:                   time.Unix(1_700_003_600, 0),
	}
}

func Test_SnapshotOutput(t *testing.T) {
	t.Run("Should write one csv row per snapshot in display units", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, writeCsv(&buf, []*snapshotRow{newSnapshotRow(testService(), testSnapshot(), nil)}))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "chain_id,program_id,service_id,name,multisig,token,has_staking_history,is_eligible_for_rewards,"+
			"observed_activity,required_activity,accrued_rewards,available_rewards_for_epoch,minimum_staked_amount,"+
			"ts_checkpoint,observed_at,error", lines[0])

		var rows []*snapshotRow
		require.Nil(t, gocsv.UnmarshalString(buf.String(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, uint64(42), rows[0].ServiceId)
		assert.Equal(t, testMultisig.Hex(), rows[0].Multisig)
		assert.Equal(t, "OLAS", rows[0].Token)
		assert.True(t, rows[0].IsEligibleForRewards)
		assert.Equal(t, "5", rows[0].ObservedActivity)
		assert.Equal(t, "3", rows[0].AccruedRewards)
		assert.Equal(t, "86.4", rows[0].AvailableRewardsForEpoch)
		assert.Equal(t, "200", rows[0].MinimumStakedAmount)
		assert.Equal(t, int64(1_700_003_600), rows[0].ObservedAt)
		assert.Empty(t, rows[0].Error)
	})
	t.Run("Should keep the service and the error for a failed snapshot", func(t *testing.T) {
		row := newSnapshotRow(testService(), nil, errors.New("rpc unavailable"))
		assert.Equal(t, uint64(42), row.ServiceId)
		assert.Equal(t, "Trader Agent", row.Name)
		assert.Equal(t, "rpc unavailable", row.Error)
		assert.Empty(t, row.AccruedRewards)
	})
	t.Run("Should write indented json with raw and display amounts", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, writeJson(&buf, rpcServer.NewSnapshotResponse(testSnapshot())))
		assert.True(t, strings.HasPrefix(buf.String(), "{\n  \""))

		var res rpcServer.SnapshotResponse
		require.Nil(t, json.Unmarshal(buf.Bytes(), &res))
		assert.Equal(t, uint64(42), res.ServiceId)
		assert.Equal(t, "86400000000000000000", res.AvailableRewardsForEpoch)
		assert.Equal(t, "86.4", res.AvailableRewardsForEpochDisplay)
	})
	t.Run("Should show observed and required activity in the table", func(t *testing.T) {
		rows := snapshotTable(testSnapshot())
		assert.Contains(t, rows, []string{"Activity (observed / required)", "5 / 3"})
		assert.Contains(t, rows, []string{"Rewards this epoch", "86.4 OLAS"})

		s := testSnapshot()
		s.HasStakingHistory = false
		assert.Contains(t, snapshotTable(s), []string{"Activity (observed / required)", "n/a"})
	})
}

func Test_RenderTablePlain(t *testing.T) {
	t.Run("Should align columns to the widest cell", func(t *testing.T) {
		out := renderTablePlain([]string{"ID", "Program"}, [][]string{{"1", "pearl_beta"}, {"1234", "x"}})
		assert.Equal(t, "ID    Program   \n1     pearl_beta\n1234  x         \n", out)
	})
	t.Run("Should render nothing without headers", func(t *testing.T) {
		assert.Equal(t, "", renderTablePlain(nil, nil))
	})
}

func Test_ValidateOutput(t *testing.T) {
	t.Run("Should accept an allowed format", func(t *testing.T) {
		assert.Nil(t, validateOutput(outputCsv, outputTable, outputJson, outputCsv))
	})
	t.Run("Should reject an unknown format as an invalid argument", func(t *testing.T) {
		err := validateOutput("yaml", outputTable, outputJson)
		assert.True(t, errors.Is(err, stakingTypes.ErrInvalidArgument))
		assert.Contains(t, err.Error(), "table, json")
	})
}

func Test_RewardsFlags(t *testing.T) {
	t.Cleanup(func() {
		_ = rewardsCmd.Flags().Set("chain-id", "100")
		_ = rewardsCmd.Flags().Set("output", outputTable)
	})

	t.Run("Should default to gnosis and table output", func(t *testing.T) {
		chainId, err := rewardsCmd.Flags().GetUint64("chain-id")
		require.Nil(t, err)
		assert.Equal(t, uint64(100), chainId)
		assert.Equal(t, outputTable, rewardsCmd.Flags().Lookup("output").DefValue)
	})
	t.Run("Should parse the short output flag", func(t *testing.T) {
		require.Nil(t, rewardsCmd.ParseFlags([]string{"--chain-id", "8453", "-o", "csv"}))

		chainId, _ := rewardsCmd.Flags().GetUint64("chain-id")
		output, _ := rewardsCmd.Flags().GetString("output")
		assert.Equal(t, uint64(8453), chainId)
		assert.Equal(t, outputCsv, output)
	})
}
