package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scmscan",
	Short: "Incremental SCM activity scanner for engineering KPI dashboards",
	Long: `scmscan pulls commits and merge requests from GitHub, GitLab, Bitbucket,
and Azure DevOps repositories into a shared data store. Scans are
incremental (each run only looks back to the last successful scan) and
rate-limit aware.

Get started:
  scmscan scan      Scan one repository (or a repos file) once
  scmscan daemon    Run scheduled scans with a metrics endpoint`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.scmscan/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(scanCmd, daemonCmd)
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
