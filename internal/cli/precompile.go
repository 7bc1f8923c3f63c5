package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/build"
	"github.com/cperrin88/nifpre/pkg/orchestrator"
)

// NewPrecompileCmd creates the precompile command.
func NewPrecompileCmd() *cobra.Command {
	var (
		targets         []string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "precompile [-- BUILD_ARGS...]",
		Short: "Build, package and checksum every target",
		Long: `Run the configured build command once per target with CC, CXX and CPP
pointing at the native or cross compiler, package the output directory
into the cache and record the archive checksums in the manifest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrecompile(cmd.Context(), targets, continueOnError, args)
		},
	}

	cmd.Flags().StringSliceVar(&targets, "targets", nil, "Targets to build (defaults to all configured targets)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep building remaining targets after a failure")

	return cmd
}

func runPrecompile(ctx context.Context, targets []string, continueOnError bool, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	store, err := cacheStore(cfg)
	if err != nil {
		return err
	}
	artifactDir, err := store.Root("")
	if err != nil {
		return err
	}

	builder := build.NewExecBuilder(cfg.Build.Command)
	// Keep stdout for the artifact table.
	builder.Stdout = os.Stderr
	orch, err := newOrchestrator(cfg, builder)
	if err != nil {
		return err
	}

	host := hostDescriptor(cfg)
	artifacts, buildErr := orch.PrecompileAll(ctx, projectFromConfig(cfg), orchestrator.PrecompileOptions{
		Targets:         targets,
		RuntimeVersion:  cfg.RuntimeVersion(),
		ProjectDir:      cfg.ProjectPath("."),
		OutputDir:       outputDir(cfg),
		ArtifactDir:     artifactDir,
		Args:            args,
		Policy:          compilerPolicy(cfg, host),
		ContinueOnError: continueOnError || cfg.Build.ContinueOnError,
	})

	if err := printArtifacts(artifacts); err != nil {
		return err
	}
	if buildErr != nil {
		return fmt.Errorf("precompile finished with errors: %w", buildErr)
	}

	logger.Success("Precompiled all targets", logger.Fields{"count": len(artifacts)})
	return nil
}

func printArtifacts(artifacts map[string]orchestrator.Artifact) error {
	list := make([]orchestrator.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Target < list[j].Target })

	if handled, err := writeStructured(os.Stdout, list); handled || err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	tabWriter := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "TARGET\tARCHIVE\tCHECKSUM")
	for _, a := range list {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\n", a.Target, a.Path, a.Sum)
	}
	return tabWriter.Flush()
}
