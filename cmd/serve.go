package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rakaly/cli/internal/config"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/jsonfmt"
	"github.com/rakaly/cli/internal/melt"
	"github.com/rakaly/cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Server.Port = resolvePort(servePort, cfg.Server.Port)
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		scfg, err := serverConfig(cfg)
		if err != nil {
			return err
		}
		conv, err := newConverter()
		if err != nil {
			return err
		}

		srv := server.New(conv, scfg)
		return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// serverConfig turns the melt and json config sections into request
// defaults.
func serverConfig(c *config.Config) (server.Config, error) {
	scfg := server.Config{
		MaxBodyBytes:   int64(c.Server.MaxBodyMB) << 20,
		RateLimit:      c.Server.RateLimit,
		RateBurst:      c.Server.RateBurst,
		AllowedOrigins: c.Server.AllowedOrigins,
		Melt:           melt.Options{Retain: c.Melt.Retain},
	}
	var err error
	if scfg.Melt.UnknownKey, err = melt.ParseUnknownPolicy(c.Melt.UnknownKey); err != nil {
		return scfg, err
	}
	if scfg.JSON.DuplicateKeys, err = jsonfmt.ParseDuplicateKeys(c.JSON.DuplicateKeys); err != nil {
		return scfg, err
	}
	if c.JSON.Encoding != "" {
		if scfg.Encoding, err = game.ParseEncoding(c.JSON.Encoding); err != nil {
			return scfg, err
		}
	}
	return scfg, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
