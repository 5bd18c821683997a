package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fontbake/internal/epoch"
	"fontbake/internal/locate"
	"fontbake/internal/logx"
	"fontbake/internal/paths"
	"fontbake/internal/provision"
)

func newEditorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editors",
		Short: "Inspect installed Unity editors",
	}
	cmd.AddCommand(newEditorsListCmd())
	return cmd
}

func newEditorsListCmd() *cobra.Command {
	var installRoot string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered editor installs, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			opts := settings.Provision
			if cmd.Flags().Changed("install-root") {
				opts.InstallRoot = absPath(installRoot)
			}

			installs := provision.New(paths.AppPaths{}, logx.Discard()).ListInstalled(opts)
			return writeInstalls(cmd, installs)
		},
	}

	cmd.Flags().StringVar(&installRoot, "install-root", "", "Additional directory to scan for editors")
	return cmd
}

type installRow struct {
	locate.Install
	Epoch epoch.Epoch `json:"epoch"`
}

func writeInstalls(cmd *cobra.Command, installs []locate.Install) error {
	rows := make([]installRow, len(installs))
	for i, in := range installs {
		rows[i] = installRow{Install: in, Epoch: epoch.ForVersion(in.Version)}
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encode editors json: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No Unity editors found.")
		return nil
	}
	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	fmt.Fprintln(out, bold.Render(fmt.Sprintf("%-16s %-8s %s", "VERSION", "EPOCH", "EXECUTABLE")))
	for _, row := range rows {
		fmt.Fprintf(out, "%-16s %-8s %s\n", row.Version, row.Epoch, row.ExecutablePath)
	}
	return nil
}
