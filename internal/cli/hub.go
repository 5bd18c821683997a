package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fontbake/internal/provision"
	"fontbake/internal/version"
)

func newHubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Query Unity Hub",
	}
	cmd.AddCommand(newHubReleasesCmd())
	return cmd
}

func newHubReleasesCmd() *cobra.Command {
	var hubPath string

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "Print the editor releases Unity Hub offers",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, "hub-releases")
			if err != nil {
				return err
			}
			defer a.Close()

			opts := a.settings.Provision
			if cmd.Flags().Changed("hub") {
				opts.HubPath = absPath(hubPath)
			}
			releases, syntax, err := a.provisioner().ListReleases(cmd.Context(), opts)
			if err != nil {
				return err
			}
			a.logger.Printf("hub returned %d releases using %s syntax", len(releases), syntax)
			return writeReleases(cmd, releases, syntax)
		},
	}

	cmd.Flags().StringVar(&hubPath, "hub", "", "Unity Hub executable")
	return cmd
}

type releaseRow struct {
	Version   version.Version `json:"version"`
	LTS       bool            `json:"lts"`
	Changeset string          `json:"changeset,omitempty"`
}

type releasesPayload struct {
	Syntax   string       `json:"syntax"`
	Releases []releaseRow `json:"releases"`
}

func writeReleases(cmd *cobra.Command, releases []provision.Release, syntax string) error {
	payload := releasesPayload{Syntax: syntax, Releases: make([]releaseRow, len(releases))}
	for i, rel := range releases {
		payload.Releases[i] = releaseRow{Version: rel.Version, LTS: rel.LTS, Changeset: rel.Changeset}
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode releases json: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	fmt.Fprintf(out, "%s %s\n", bold.Render("Hub syntax:"), syntax)
	for _, row := range payload.Releases {
		lts := ""
		if row.LTS {
			lts = "LTS"
		}
		fmt.Fprintf(out, "  %-16s %-4s %s\n", row.Version, lts, row.Changeset)
	}
	return nil
}
