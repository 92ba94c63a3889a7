package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ar-io-observer/chainphase"
	"ar-io-observer/contractclient"
	"ar-io-observer/internal/startup"
	"ar-io-observer/logging"
	"ar-io-observer/nodeconfig"
	"ar-io-observer/store"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ar-io-observer",
		Short:         "Observe gateways and publish epoch reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserver(cmd.Context())
		},
	}
	root.AddCommand(
		RunCommand(),
		StatusCommand(),
		EpochCommand(),
		PublishCommand(),
	)
	return root
}

func RunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the report scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserver(cmd.Context())
		},
	}
}

func runObserver(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	config, err := nodeconfig.LoadDefaultConfigManager()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	defer config.Close()
	logging.Setup(config.GetObserverConfig().Debug)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	system, err := startup.NewSystem(ctx, config)
	if err != nil {
		return errors.Wrap(err, "starting observer")
	}
	defer system.Close()

	return system.Run(ctx)
}

// StatusCommand prints the last observed height in the same shape a node
// status endpoint would.
func StatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last observed block height as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.WithNoopLogger(func() (any, error) {
				return nil, printStatus(cmd.Context(), cmd.OutOrStdout())
			})
			return err
		},
	}
}

func printStatus(ctx context.Context, out io.Writer) error {
	config, err := nodeconfig.LoadDefaultConfigManager()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	defer config.Close()

	height, _, err := config.GetLastObservedHeight(ctx)
	if err != nil {
		return err
	}
	status := map[string]interface{}{
		"sync_info": map[string]string{
			"latest_block_height": strconv.FormatInt(height, 10),
		},
	}
	saves, err := config.ListReportSaves(ctx, 1)
	if err == nil && len(saves) > 0 {
		status["last_report_save"] = saves[0]
	}
	return writeJSON(out, status)
}

func EpochCommand() *cobra.Command {
	var (
		height  int64
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "epoch",
		Short: "Print the epoch window containing a block height",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.WithNoopLogger(func() (any, error) {
				return nil, printEpoch(cmd.Context(), cmd.OutOrStdout(), height, offline)
			})
			return err
		},
	}
	cmd.Flags().Int64Var(&height, "height", 0, "block height")
	cmd.Flags().BoolVar(&offline, "offline", false, "use configured epoch parameters without querying the contract")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func printEpoch(ctx context.Context, out io.Writer, height int64, offline bool) error {
	config, err := nodeconfig.LoadDefaultConfigManager()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	defer config.Close()

	contractConfig := config.GetContractConfig()
	params := chainphase.EpochParams{
		EpochZeroStartHeight: contractConfig.EpochZeroStartHeight,
		EpochBlockLength:     contractConfig.EpochBlockLength,
	}
	if !offline {
		contract := contractclient.NewClient(contractConfig.CacheUrl, contractConfig.Id)
		params = chainphase.LoadEpochParams(ctx, contract, params)
	}
	epoch := chainphase.NewEpochHeightSource(nil, params).GetEpochForHeight(height)
	return writeJSON(out, struct {
		Height      int64                  `json:"height"`
		Epoch       chainphase.Epoch       `json:"epoch"`
		EpochParams chainphase.EpochParams `json:"epochParams"`
	}{height, epoch, params})
}

// PublishCommand pushes a stored report through the sink pipeline without
// any epoch or selection gating.
func PublishCommand() *cobra.Command {
	var reportFile string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a stored report through the sink pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return publishReport(cmd.Context(), cmd.OutOrStdout(), reportFile)
		},
	}
	cmd.Flags().StringVar(&reportFile, "report", "", "path to a report JSON file")
	_ = cmd.MarkFlagRequired("report")
	return cmd
}

func publishReport(ctx context.Context, out io.Writer, reportFile string) error {
	r, err := store.LoadReport(reportFile)
	if err != nil {
		return err
	}

	config, err := nodeconfig.LoadDefaultConfigManager()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	defer config.Close()
	logging.Setup(config.GetObserverConfig().Debug)

	system, err := startup.NewSystem(ctx, config)
	if err != nil {
		return errors.Wrap(err, "starting observer")
	}
	defer system.Close()

	result, err := system.Scheduler.Publish(ctx, r)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
