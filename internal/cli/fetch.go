package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/errors"
	"github.com/cperrin88/nifpre/pkg/orchestrator"
)

type fetchFlags struct {
	all               bool
	onlyLocal         bool
	ignoreUnavailable bool
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.all, "all", false, "Every target and runtime version")
	cmd.Flags().BoolVar(&f.onlyLocal, "only-local", false, "Only this host's target (default)")
	cmd.MarkFlagsMutuallyExclusive("all", "only-local")
}

func (f *fetchFlags) options(host orchestrator.FetchOptions) orchestrator.FetchOptions {
	host.All = f.all && !f.onlyLocal
	host.IgnoreUnavailable = f.ignoreUnavailable
	return host
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download artifacts into the cache",
		Long: `Download precompiled archives into the cache without installing them.
Without --all only this host's target is fetched, for every compatible
runtime version, and missing archives are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.ignoreUnavailable, "ignore-unavailable", false, "Skip archives that cannot be downloaded")

	return cmd
}

// NewChecksumCmd creates the checksum command.
func NewChecksumCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Download artifacts and record their checksums",
		Long: `Download precompiled archives and write their SHA-256 digests into the
project's checksum manifest. Existing entries for other archives are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChecksum(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.ignoreUnavailable, "ignore-unavailable", false, "Skip archives that cannot be downloaded")

	return cmd
}

func runFetch(ctx context.Context, flags fetchFlags) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	results, err := orch.FetchArtifacts(ctx, projectFromConfig(cfg), flags.options(orchestrator.FetchOptions{Host: hostDescriptor(cfg)}))
	if err != nil {
		return err
	}

	if handled, err := writeStructured(os.Stdout, results); handled || err != nil {
		return err
	}
	tabWriter := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "FILE\tSIZE\tCHECKSUM")
	for _, r := range results {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\n", r.Path, humanize.IBytes(uint64(r.Size)), r.Sum)
	}
	return tabWriter.Flush()
}

func runChecksum(ctx context.Context, flags fetchFlags) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	p := projectFromConfig(cfg)
	fetched, err := orch.FetchChecksums(ctx, p, flags.options(orchestrator.FetchOptions{Host: hostDescriptor(cfg)}))
	if err != nil {
		return err
	}
	if len(fetched) == 0 {
		return errors.New(errors.KindTransport, "checksum", cfg.App.Name, errors.ErrDownloadFailed).
			WithRemedy("nifpre checksum --all")
	}

	names := make([]string, 0, len(fetched))
	for name := range fetched {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s\t%s\n", name, fetched[name])
	}
	logger.Success("Checksum manifest updated", logger.Fields{"path": p.ManifestPath, "entries": len(fetched)})
	return nil
}
