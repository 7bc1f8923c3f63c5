package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/pkg/orchestrator"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install the artifact for this host",
		Long: `Make sure the precompiled artifact for this host is installed.
Nothing is downloaded when the load file already exists. Otherwise the
archive is taken from the cache or downloaded, checked against the
checksum manifest and extracted into the install directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), dir)
		},
	}

	cmd.Flags().StringVar(&dir, "install-dir", "", "Install directory (defaults to config)")

	return cmd
}

func runInstall(ctx context.Context, dir string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = installDir(cfg)
	}

	orch, err := newOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	res, err := orch.EnsureInstalled(ctx, projectFromConfig(cfg), orchestrator.InstallOptions{
		Host:       hostDescriptor(cfg),
		InstallDir: dir,
		LoadFile:   cfg.App.LoadFile,
		LoadData:   cfg.App.LoadData,
	})
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", cfg.App.Name, err)
	}

	if handled, err := writeStructured(os.Stdout, res); handled || err != nil {
		return err
	}
	fmt.Println(res.InstalledPath)
	return nil
}
