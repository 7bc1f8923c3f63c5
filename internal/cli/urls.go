package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewURLsCmd creates the urls command.
func NewURLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "urls",
		Short: "List artifact URLs recorded for the project",
		Long: `Print the candidate artifact URLs from the metadata record written by
the last install, without probing this host.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runURLs()
		},
	}
}

func runURLs() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	entries, err := orch.AvailableURLs(cfg.App.Name)
	if err != nil {
		return err
	}

	if handled, err := writeStructured(os.Stdout, entries); handled || err != nil {
		return err
	}

	tabWriter := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "TARGET\tRUNTIME\tURL")
	for _, e := range entries {
		runtime := e.RuntimeVersion
		if e.Legacy {
			runtime = "-"
		}
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\n", e.Target, runtime, e.URL)
	}
	return tabWriter.Flush()
}
