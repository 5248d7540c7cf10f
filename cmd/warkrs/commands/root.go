package commands

import (
	"context"
	"fmt"
	"os"

	"warkrs/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "warkrs",
	Short: "warkrs automates course registration on the SIAKAD portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().StringP("config", "c", "config.json5", "Path to the configuration file.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

var exitHooks []func()

// OnExit registers cleanup that runs before the process exits through Exit.
func OnExit(hook func()) {
	exitHooks = append(exitHooks, hook)
}

// Exit runs the registered cleanup hooks and exits with the given code.
func Exit(code int) {
	for _, hook := range exitHooks {
		hook()
	}
	os.Exit(code)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		Exit(1)
	}
	Exit(0)
}
