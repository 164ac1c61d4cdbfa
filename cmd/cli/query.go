package cli

import (
	"context"

	"github.com/canopy-network/shardnode/lib"
	"github.com/spf13/cobra"
)

var committeeCmd = &cobra.Command{
	Use:   "committee",
	Short: "query and initialize the committees of a storage node",
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "admin only operations on the storage node rpc",
}

var (
	initEpoch, initShards = uint64(0), uint16(0)
)

func init() {
	committeeInitCmd.Flags().Uint64Var(&initEpoch, "epoch", 0, "the epoch of the committee")
	committeeInitCmd.Flags().Uint16Var(&initShards, "shards", defaultShardCount, "the number of shards, all owned by this node")
	committeeCmd.AddCommand(committeeActiveCmd)
	committeeCmd.AddCommand(committeeEpochCmd)
	committeeCmd.AddCommand(committeeTrackerCmd)
	committeeCmd.AddCommand(committeeInitCmd)
	adminCmd.AddCommand(configCmd)
	adminCmd.AddCommand(resourceUsageCmd)
	adminCmd.AddCommand(versionQueryCmd)
}

var (
	committeeActiveCmd = &cobra.Command{
		Use:   "active",
		Short: "query the active committees (previous, current and next) of the node",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.GetActiveCommittees(context.Background()))
		},
	}

	committeeEpochCmd = &cobra.Command{
		Use:   "epoch",
		Short: "query the current epoch of the node",
		Run: func(cmd *cobra.Command, args []string) {
			committees, err := client.GetActiveCommittees(context.Background())
			if err != nil {
				l.Fatal(err.Error())
			}
			writeToConsole(committees.Epoch(), nil)
		},
	}

	committeeTrackerCmd = &cobra.Command{
		Use:   "tracker",
		Short: "query the committee tracker, including whether an epoch change is in progress",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Tracker(context.Background()))
		},
	}

	committeeInitCmd = &cobra.Command{
		Use:   "init",
		Short: "write a single member committees file where this node owns every shard",
		Run: func(cmd *cobra.Command, args []string) {
			if err := WriteDefaultCommitteesFile(nodeKey, config, config.DataDirPath, lib.Epoch(initEpoch), initShards); err != nil {
				l.Fatal(err.Error())
			}
			l.Infof("Wrote %s with %d shards at epoch %d", lib.CommitteesFilePath, initShards, initEpoch)
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "query the configuration of the node",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Config(context.Background()))
		},
	}

	resourceUsageCmd = &cobra.Command{
		Use:   "resource-usage",
		Short: "query the process and host resource usage of the node",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.ResourceUsage(context.Background()))
		},
	}

	versionQueryCmd = &cobra.Command{
		Use:   "version",
		Short: "query the software version of the running node",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Version(context.Background()))
		},
	}
)
