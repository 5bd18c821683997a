package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fontbake/internal/config"
	"fontbake/internal/pipeline"
	"fontbake/internal/tui"
)

func newConvertCmd() *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "convert <font>",
		Short: "Convert one font into a TextMeshPro AssetBundle",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, "convert")
			if err != nil {
				return err
			}
			defer a.Close()

			opts := a.settings.Options.Clone()
			opts.Convert.Font = absPath(args[0])
			if err := flags.apply(cmd.Flags(), &opts); err != nil {
				return err
			}
			opts.ApplyDefaults()

			p, err := a.pipeline(a.provisioner())
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), cmd.OutOrStdout(), p, opts)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func runConvert(ctx context.Context, out io.Writer, p *pipeline.Pipeline, opts config.Options) error {
	var (
		res    pipeline.Result
		runErr error
	)
	switch tui.DetectMode(out, plainOut, outputJSON) {
	case tui.ModeTUI:
		status := tui.NewStatusWriter(out)
		status.SetPhase("resolving editor")
		res, runErr = p.Run(ctx, opts, func(phase pipeline.Phase, line string) {
			status.SetPhase(string(phase))
			status.SetDetail(line)
		})
		status.Stop()
	case tui.ModePlain:
		res, runErr = p.Run(ctx, opts, func(phase pipeline.Phase, line string) {
			fmt.Fprintf(out, "[%s] %s\n", phase, line)
		})
	default:
		res, runErr = p.Run(ctx, opts, nil)
		return writeConvertJSON(out, res, runErr)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(out, "Built %s with Unity %s (%s adapter)\n", res.ArtifactPath, res.EditorVersion, res.AdapterName)
	if res.WorkspacePath != "" {
		fmt.Fprintf(out, "Workspace kept at %s\n", res.WorkspacePath)
	}
	return nil
}

type convertPayload struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Result  *pipeline.Result `json:"result,omitempty"`
}

func writeConvertJSON(out io.Writer, res pipeline.Result, runErr error) error {
	payload := convertPayload{Success: runErr == nil}
	if runErr != nil {
		payload.Error = runErr.Error()
	} else {
		payload.Result = &res
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	if runErr != nil {
		return exitError{ExitFailure}
	}
	return nil
}
