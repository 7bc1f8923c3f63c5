package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/cache"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact cache",
		Long:  "Clean, show information about, and locate the artifact cache",
	}

	cmd.AddCommand(
		newCacheCleanCmd(),
		newCacheInfoCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var (
		all       bool
		artifacts bool
		metadata  bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the artifact cache",
		Long:  "Remove cached archives and metadata records to free up disk space",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runCacheClean(all, artifacts, metadata)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clean all cached files")
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "Clean only downloaded archives")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Clean only metadata records")

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Long:  "Display size and file counts of the artifact cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runCacheInfo()
		},
	}
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show cache directory path",
		Long:  "Display the path to the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runCacheDir()
		},
	}
}

func cacheOperation() (*cache.CacheOperation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := cacheStore(cfg)
	if err != nil {
		return nil, err
	}
	return cache.NewCacheOperation(store), nil
}

func runCacheClean(all, artifacts, metadata bool) error {
	op, err := cacheOperation()
	if err != nil {
		return err
	}

	if !all && !artifacts && !metadata {
		all = true
	}
	summary, err := op.Clean(all, artifacts, metadata)
	if err != nil {
		return err
	}

	logger.Success(summary, logger.Fields{"directory": op.GetDirectory()})
	return nil
}

func runCacheInfo() error {
	op, err := cacheOperation()
	if err != nil {
		return err
	}

	info, err := op.GetInfo()
	if err != nil {
		return err
	}
	fmt.Println(info)
	return nil
}

func runCacheDir() error {
	op, err := cacheOperation()
	if err != nil {
		return err
	}
	fmt.Println(op.GetDirectory())
	return nil
}
