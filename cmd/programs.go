package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/rpcServer"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type programListing struct {
	Program *rpcServer.ProgramResponse         `json:"program"`
	Details *rpcServer.ContractDetailsResponse `json:"details,omitempty"`
	Error   string                             `json:"error,omitempty"`
}

// fetchProgramDetails reads the contract details of every program. A program whose read fails
// keeps its error instead of failing the listing.
func fetchProgramDetails(ctx context.Context, deps *stakingDeps, programs []*chainRegistry.StakingProgram) ([]*stakingTypes.StakingContractDetails, []error) {
	details := make([]*stakingTypes.StakingContractDetails, len(programs))
	errs := make([]error, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, program := range programs {
		g.Go(func() error {
			agg, err := deps.aggregators.ForProgram(program.ChainId, program.Id)
			if err == nil {
				details[i], err = agg.GetStakingContractDetails(gctx, program.Id)
			}
			if err != nil {
				deps.logger.Sugar().Warnw("Failed to read staking contract details",
					zap.String("program", program.Id),
					zap.Error(err),
				)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return details, errs
}

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List the staking programs of a chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		chainId, _ := cmd.Flags().GetUint64("chain-id")
		withDetails, _ := cmd.Flags().GetBool("details")
		output, _ := cmd.Flags().GetString("output")

		if err := validateOutput(output, outputTable, outputJson); err != nil {
			return err
		}

		deps, err := setupCommand()
		if err != nil {
			return err
		}
		programs, err := deps.registry.ListStakingPrograms(chainId)
		if err != nil {
			return err
		}

		var details []*stakingTypes.StakingContractDetails
		var errs []error
		if withDetails {
			details, errs = fetchProgramDetails(context.Background(), deps, programs)
		}

		listings := make([]*programListing, 0, len(programs))
		for i, p := range programs {
			listing := &programListing{Program: rpcServer.NewProgramResponse(p)}
			if withDetails {
				if errs[i] != nil {
					listing.Error = string(stakingTypes.ClassifyError(errs[i]))
				} else {
					listing.Details = rpcServer.NewContractDetailsResponse(details[i])
				}
			}
			listings = append(listings, listing)
		}

		if output == outputJson {
			return writeJson(os.Stdout, listings)
		}

		headers := []string{"Id", "Name", "Token", "Agents", "Deprecated"}
		if withDetails {
			headers = append(headers, "Slots", "Min stake", "Rewards / period", "APY %")
		}
		rows := make([][]string, 0, len(listings))
		for _, l := range listings {
			row := []string{
				l.Program.Id,
				l.Program.Name,
				l.Program.TokenSymbol,
				strings.Join(l.Program.AgentsSupported, ","),
				strconv.FormatBool(l.Program.Deprecated),
			}
			if withDetails {
				if l.Details == nil {
					row = append(row, l.Error, "", "", "")
				} else {
					row = append(row,
						fmt.Sprintf("%s/%s", l.Details.AvailableSlots, l.Details.MaxNumServices),
						l.Details.MinimumStakedAmountDisplay,
						l.Details.RewardsPerWorkPeriodDisplay,
						l.Details.Apy,
					)
				}
			}
			rows = append(rows, row)
		}
		fmt.Print(renderTable(headers, rows))
		fmt.Println()
		return nil
	},
}

func init() {
	programsCmd.Flags().Uint64("chain-id", 100, "Chain id")
	programsCmd.Flags().Bool("details", false, "Also read each program's staking contract")
	programsCmd.Flags().StringP("output", "o", outputTable, "table or json")
}
