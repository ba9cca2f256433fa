package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/config"
	"github.com/rakaly/cli/internal/convert"
	"github.com/rakaly/cli/internal/tokens"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rakaly",
	Short: "Convert and snapshot Paradox save files",
	Long:  "Melts binary saves (EU4, CK3, HOI4, Imperator, Victoria 3) to plaintext, converts saves and game files to JSON, and snapshots a save as the campaign progresses.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// exitError carries a process exit code other than the fatal default.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process status: 1 for conversions
// that finished with unknown tokens, 2 for everything fatal.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}

// newConverter loads the token dictionaries named by the config.
func newConverter() (*convert.Converter, error) {
	reg, err := tokens.LoadDir(cfg.Tokens.Dir)
	if err != nil {
		return nil, err
	}
	return convert.New(reg), nil
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}
