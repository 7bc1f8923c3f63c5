package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/internal/cli"
	"github.com/cperrin88/nifpre/pkg/errors"
)

var (
	configPath   string
	logLevel     string
	logFormat    string
	outputFormat string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if remedy := errors.RemedyOf(err); remedy != "" {
			fmt.Fprintf(os.Stderr, "Hint: run `%s`\n", remedy)
		}
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nifpre",
		Short: "Precompiled native extension artifacts",
		Long: `nifpre resolves, downloads, verifies and installs precompiled native
extension archives, and builds them for every target on release:
- install: make the artifact for this host available
- fetch, checksum: mirror archives and maintain the checksum manifest
- precompile: cross-build, package and checksum every target`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./nifpre.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (json, yaml, text)")

	cli.ConfigPath = &configPath
	cli.LogLevel = &logLevel
	cli.LogFormat = &logFormat
	cli.OutputFormat = &outputFormat

	cmd.AddCommand(
		cli.NewTargetCmd(),
		cli.NewInstallCmd(),
		cli.NewFetchCmd(),
		cli.NewChecksumCmd(),
		cli.NewPrecompileCmd(),
		cli.NewURLsCmd(),
		cli.NewConfigCmd(),
		cli.NewCacheCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
