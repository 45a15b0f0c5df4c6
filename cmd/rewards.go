package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/rpcServer"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/spf13/cobra"
)

// snapshotRow is the flat csv form of a rewards snapshot.
type snapshotRow struct {
	ChainId                  uint64 `csv:"chain_id"`
	ProgramId                string `csv:"program_id"`
	ServiceId                uint64 `csv:"service_id"`
	Name                     string `csv:"name"`
	Multisig                 string `csv:"multisig"`
	Token                    string `csv:"token"`
	HasStakingHistory        bool   `csv:"has_staking_history"`
	IsEligibleForRewards     bool   `csv:"is_eligible_for_rewards"`
	ObservedActivity         string `csv:"observed_activity"`
	RequiredActivity         string `csv:"required_activity"`
	AccruedRewards           string `csv:"accrued_rewards"`
	AvailableRewardsForEpoch string `csv:"available_rewards_for_epoch"`
	MinimumStakedAmount      string `csv:"minimum_staked_amount"`
	TsCheckpoint             string `csv:"ts_checkpoint"`
	ObservedAt               int64  `csv:"observed_at"`
	Error                    string `csv:"error"`
}

func newSnapshotRow(service stakingTypes.WatchedService, s *stakingTypes.StakingRewardsSnapshot, err error) *snapshotRow {
	row := &snapshotRow{
		ChainId:   service.ChainId,
		ProgramId: service.ProgramId,
		ServiceId: service.Service.ServiceId,
		Name:      service.Name,
		Multisig:  service.Service.Multisig.Hex(),
	}
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.Token = s.Token.Symbol
	row.HasStakingHistory = s.HasStakingHistory
	row.IsEligibleForRewards = s.IsEligibleForRewards
	if s.ObservedActivity != nil {
		row.ObservedActivity = s.ObservedActivity.String()
	}
	if s.RequiredActivity != nil {
		row.RequiredActivity = s.RequiredActivity.String()
	}
	row.AccruedRewards = s.AccruedServiceStakingRewardsDisplay().String()
	row.AvailableRewardsForEpoch = s.AvailableRewardsForEpochDisplay().String()
	row.MinimumStakedAmount = s.MinimumStakedAmountDisplay().String()
	if s.TsCheckpoint != nil {
		row.TsCheckpoint = s.TsCheckpoint.String()
	}
	row.ObservedAt = s.ObservedAt.Unix()
	return row
}

func snapshotTable(s *stakingTypes.StakingRewardsSnapshot) [][]string {
	activity := "n/a"
	if s.HasStakingHistory {
		activity = fmt.Sprintf("%s / %s", s.ObservedActivity, s.RequiredActivity)
	}
	return [][]string{
		{"Chain", strconv.FormatUint(s.ChainId, 10)},
		{"Program", s.ProgramId},
		{"Service", strconv.FormatUint(s.ServiceId, 10)},
		{"Multisig", s.Multisig.Hex()},
		{"Staking history", strconv.FormatBool(s.HasStakingHistory)},
		{"Eligible", strconv.FormatBool(s.IsEligibleForRewards)},
		{"Activity (observed / required)", activity},
		{"Accrued rewards", fmt.Sprintf("%s %s", s.AccruedServiceStakingRewardsDisplay(), s.Token.Symbol)},
		{"Rewards this epoch", fmt.Sprintf("%s %s", s.AvailableRewardsForEpochDisplay(), s.Token.Symbol)},
		{"Minimum stake", fmt.Sprintf("%s %s", s.MinimumStakedAmountDisplay(), s.Token.Symbol)},
		{"Last checkpoint", s.TsCheckpoint.String()},
	}
}

var rewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "Print the rewards snapshot of one staked service",
	RunE: func(cmd *cobra.Command, args []string) error {
		chainId, _ := cmd.Flags().GetUint64("chain-id")
		programId, _ := cmd.Flags().GetString("program")
		serviceId, _ := cmd.Flags().GetUint64("service-id")
		multisig, _ := cmd.Flags().GetString("multisig")
		output, _ := cmd.Flags().GetString("output")

		if err := validateOutput(output, outputTable, outputJson, outputCsv); err != nil {
			return err
		}
		if !common.IsHexAddress(multisig) {
			return fmt.Errorf("%w: multisig '%s'", stakingTypes.ErrInvalidArgument, multisig)
		}

		deps, err := setupCommand()
		if err != nil {
			return err
		}

		service := stakingTypes.WatchedService{
			ChainId:   chainId,
			ProgramId: strings.TrimSpace(programId),
			Service: stakingTypes.ServiceIdentity{
				ServiceId: serviceId,
				Multisig:  common.HexToAddress(multisig),
			},
		}
		agg, err := deps.aggregators.ForProgram(service.ChainId, service.ProgramId)
		if err != nil {
			return err
		}
		snapshot, err := agg.GetStakingRewardsSnapshot(context.Background(), service.Service, service.ProgramId)
		if err != nil {
			return err
		}

		switch output {
		case outputJson:
			return writeJson(os.Stdout, rpcServer.NewSnapshotResponse(snapshot))
		case outputCsv:
			return writeCsv(os.Stdout, []*snapshotRow{newSnapshotRow(service, snapshot, nil)})
		default:
			fmt.Print(renderTable([]string{"Field", "Value"}, snapshotTable(snapshot)))
			fmt.Println()
			return nil
		}
	},
}

func init() {
	rewardsCmd.Flags().Uint64("chain-id", 100, "Chain id of the staking program")
	rewardsCmd.Flags().String("program", "", "Staking program id, e.g. pearl_beta")
	rewardsCmd.Flags().Uint64("service-id", 0, "Service id")
	rewardsCmd.Flags().String("multisig", "", "Service multisig address")
	rewardsCmd.Flags().StringP("output", "o", outputTable, "table, json or csv")
	_ = rewardsCmd.MarkFlagRequired("program")
	_ = rewardsCmd.MarkFlagRequired("service-id")
	_ = rewardsCmd.MarkFlagRequired("multisig")
}
