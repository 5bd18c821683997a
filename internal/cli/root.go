// Package cli wires the fontbake commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fontbake/internal/config"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	configFile string
	outputJSON bool
	verbose    bool
	plainOut   bool
)

// Execute runs the root command and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// usageError marks malformed invocations.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitError carries a non-default exit status without extra output.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		return ExitUsage
	}
	return ExitFailure
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fontbake",
		Short:         "Bake fonts into TextMeshPro AssetBundles with the Unity editor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{fmt.Errorf("%w\n\n%s", err, c.UsageString())}
	})

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Settings file (default: ./fontbake.yaml or the user config dir)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror the run log to stderr")
	cmd.PersistentFlags().BoolVar(&plainOut, "plain", false, "Disable the interactive progress display")

	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newEditorsCmd())
	cmd.AddCommand(newHubCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// loadSettings reads the settings file and environment, binding the
// run-level flags of cmd when it has them.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	v := config.NewViper(configFile)
	for key, flag := range map[string]string{"max_workers": "max-workers", "continue_on_error": "continue-on-error"} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Settings{}, err
			}
		}
	}
	return config.LoadSettings(v)
}
