package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pearl-agents/staking-sidecar/pkg/clients/middleware"
	"github.com/pearl-agents/staking-sidecar/pkg/rpcServer"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serviceListing struct {
	ChainId   uint64                      `json:"chainId"`
	ProgramId string                      `json:"programId"`
	ServiceId uint64                      `json:"serviceId"`
	Name      string                      `json:"name,omitempty"`
	Snapshot  *rpcServer.SnapshotResponse `json:"snapshot,omitempty"`
	ErrorKind string                      `json:"errorKind,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Fetch deployed services from the service backend and print each one's rewards snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if err := validateOutput(output, outputCsv, outputJson); err != nil {
			return err
		}

		deps, err := setupCommand()
		if err != nil {
			return err
		}
		ctx := context.Background()

		client := middleware.NewClient(deps.cfg.MiddlewareConfig.Url, deps.logger)
		services, err := client.ListServices(ctx)
		if err != nil {
			return err
		}
		watched := middleware.ToWatchedServices(services, deps.registry, deps.logger)

		bar := progressbar.NewOptions(len(watched),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("reading staking contracts"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		snapshots := make([]*stakingTypes.StakingRewardsSnapshot, len(watched))
		errs := make([]error, len(watched))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(concurrency, 1))
		for i, svc := range watched {
			g.Go(func() error {
				defer bar.Add(1) //nolint:errcheck
				agg, err := deps.aggregators.ForProgram(svc.ChainId, svc.ProgramId)
				if err == nil {
					snapshots[i], err = agg.GetStakingRewardsSnapshot(gctx, svc.Service, svc.ProgramId)
				}
				errs[i] = err
				return nil
			})
		}
		_ = g.Wait()
		_ = bar.Finish()

		if output == outputJson {
			listings := make([]*serviceListing, 0, len(watched))
			for i, svc := range watched {
				listings = append(listings, &serviceListing{
					ChainId:   svc.ChainId,
					ProgramId: svc.ProgramId,
					ServiceId: svc.Service.ServiceId,
					Name:      svc.Name,
					Snapshot:  rpcServer.NewSnapshotResponse(snapshots[i]),
					ErrorKind: string(stakingTypes.ClassifyError(errs[i])),
					Error:     errorString(errs[i]),
				})
			}
			return writeJson(os.Stdout, listings)
		}

		rows := make([]*snapshotRow, 0, len(watched))
		for i, svc := range watched {
			rows = append(rows, newSnapshotRow(svc, snapshots[i], errs[i]))
		}
		if err := writeCsv(os.Stdout, rows); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	},
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	servicesCmd.Flags().StringP("output", "o", outputCsv, "csv or json")
	servicesCmd.Flags().Int("concurrency", 4, "Services read in parallel")
}
