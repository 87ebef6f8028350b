// Package cmd contains the CLI commands for pondctl.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/logging"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
)

var (
	// Used for flags
	verbose   bool
	output    string
	serverURL string
	timeout   time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pondctl",
	Short: "pondctl - command line client for the pond server",
	Long: `pondctl talks to the pond server directly: watch a pond live, work
through abnormal events, change platform settings and thresholds, and
inspect sensor history.

Examples:
  # Watch pond 2 live, type another pond number to switch
  pondctl watch --pool 2

  # List pending water quality alerts of every pond
  pondctl alerts list --event waterodd

  # Set the feed amount of pond 1 to 120 grams
  pondctl settings set feed 120 --pool 1

  # Narrow the pH range
  pondctl thresholds set --pool 1 --ph 6:8.5`,
	// Run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultURL := os.Getenv("PONDVIEW_UPSTREAM")
	if defaultURL == "" {
		defaultURL = "http://localhost:1000"
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "pond server base URL (env PONDVIEW_UPSTREAM)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintError prints an error message and exits if fatal is true.
func PrintError(msg string, fatal bool) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	if fatal {
		os.Exit(1)
	}
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newLogger() *zap.Logger {
	return logging.NewCLI(verbose)
}

func newClient(logger *zap.Logger) (*pondapi.Client, error) {
	client, err := pondapi.New(pondapi.Config{BaseURL: serverURL, Timeout: timeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	PrintVerbose("Using pond server %s", serverURL)
	return client, nil
}
