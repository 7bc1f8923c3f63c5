package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cperrin88/nifpre/pkg/platform"
)

type targetOutput struct {
	Target         string `json:"target" yaml:"target"`
	RuntimeVersion string `json:"runtime_version" yaml:"runtime_version"`
	Host           string `json:"host" yaml:"host"`
}

// NewTargetCmd creates the target command.
func NewTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target",
		Short: "Print the target for this host",
		Long: `Resolve this host to one of the configured targets and print it.
TARGET_ARCH, TARGET_VENDOR, TARGET_OS and TARGET_ABI override the detected values.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runTarget()
		},
	}
}

func runTarget() error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	host := hostDescriptor(cfg)
	res, err := platform.ResolveRuntime(host, cfg.Convention(), cfg.Targets.Supported, cfg.Targets.RuntimeVersions)
	if err != nil {
		return err
	}

	out := targetOutput{Target: res.Target, RuntimeVersion: res.RuntimeVersion, Host: platform.Describe(host)}
	if handled, err := writeStructured(os.Stdout, out); handled || err != nil {
		return err
	}
	fmt.Println(res.Target)
	return nil
}
