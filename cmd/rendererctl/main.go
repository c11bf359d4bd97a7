package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// app carries the configuration and the workspace opened for the running
// command.
type app struct {
	cfg Config
	ws  *workspace
}

func newRootCmd(cfg Config) *cobra.Command {
	a := &app{cfg: cfg}
	rootCmd := &cobra.Command{
		Use:   "rendererctl",
		Short: "Edit the renderer feature lists of renderer assets",
		Long: `rendererctl edits the ordered renderer feature list stored in
renderer asset documents (*.renderer.yaml).

Configuration is read from the environment (RENDERERCTL_*) and from a
.env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(a.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.ws = ws
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.ws.writeMetrics(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfg.Dir, "dir", "d", cfg.Dir, "asset directory")
	rootCmd.PersistentFlags().StringVar(&a.cfg.Rule, "rule", cfg.Rule, "duplicate rule expression")
	rootCmd.PersistentFlags().StringVar(&a.cfg.RuleEngine, "engine", cfg.RuleEngine, "duplicate rule engine (expr, cel, js)")

	rootCmd.AddCommand(
		a.typesCmd(),
		a.createCmd(),
		a.listCmd(),
		a.addCmd(),
		a.removeCmd(),
		a.moveCmd(),
		a.renameCmd(),
		a.toggleCmd(),
		a.setCmd(),
		a.repairCmd(),
		a.showCmd(),
		a.queryCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// the workspace is not needed to print the version
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rendererctl %s (%s)\n", version, commit)
		},
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
