package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fontbake/internal/epoch"
	"fontbake/internal/locate"
	"fontbake/internal/version"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <game>",
		Short: "Detect the Unity version a game was built with",
		Long: `Detect the Unity version of a game from its executable, install folder or
_Data folder, and print the automation epoch that version maps to.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := absPath(args[0])
			v, ok := locate.DetectTargetVersion(cmd.Context(), target)
			if !ok {
				return fmt.Errorf("no Unity version found in %s", target)
			}
			return writeDetection(cmd, target, v)
		},
	}
}

type detection struct {
	Path    string          `json:"path"`
	Version version.Version `json:"version"`
	Epoch   epoch.Epoch     `json:"epoch"`
}

func writeDetection(cmd *cobra.Command, target string, v version.Version) error {
	d := detection{Path: target, Version: v, Epoch: epoch.ForVersion(v)}
	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("encode detection json: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "%s (%s epoch)\n", d.Version, d.Epoch)
	return nil
}
