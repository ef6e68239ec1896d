// Package cmd implements the compliance-monitor CLI: monitor, review, and
// rules show subcommands, sharing the exit-code contract from §6 (0 clean
// shutdown, 1 configuration error, 2 unrecoverable runtime error).
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compliance-monitor",
	Short: "Real-time compliance monitoring for prop-trading accounts",
	Long: `compliance-monitor watches funded trading accounts against their firm's
rules (daily drawdown, total drawdown, per-trade risk, lot and position caps,
margin level, stop-loss requirements) and emits warnings before a limit is
reached and hard-breach events when one is.`,
}

// configError marks a startup failure that should exit 1 (§6, §7).
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// ConfigError wraps err so Execute maps it to exit code 1.
func ConfigError(err error) error {
	if err == nil {
		return nil
	}
	return configError{err: err}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var cfgErr configError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(os.Stderr, "configuration error:", cfgErr.Error())
		return 1
	}

	fmt.Fprintln(os.Stderr, "runtime error:", err)
	return 2
}
