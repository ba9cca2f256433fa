package main

import (
	"bufio"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rakaly/cli/internal/convert"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/jsonfmt"
)

var (
	jsonPretty        bool
	jsonDuplicateKeys string
	jsonEncoding      string
	jsonInterpolate   bool
	jsonGameVersion   string
)

var jsonCmd = &cobra.Command{
	Use:   "json <input>",
	Short: "Convert a save or game file to JSON",
	Long:  "Writes the input as JSON to stdout. Saves are recognized by extension; any other file is parsed as game script text in --format encoding.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		req, err := jsonRequest(input)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(input)
		if err != nil {
			return eris.Wrap(err, "json: read input")
		}
		conv, err := newConverter()
		if err != nil {
			return err
		}

		w := bufio.NewWriter(cmd.OutOrStdout())
		if err := conv.JSON(cmd.Context(), data, req, w); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return eris.Wrap(err, "json: write output")
		}
		return eris.Wrap(w.Flush(), "json: write output")
	},
}

func jsonRequest(input string) (convert.JSONRequest, error) {
	var req convert.JSONRequest
	var err error

	dup := cfg.JSON.DuplicateKeys
	if jsonDuplicateKeys != "" {
		dup = jsonDuplicateKeys
	}
	if req.JSON.DuplicateKeys, err = jsonfmt.ParseDuplicateKeys(dup); err != nil {
		return req, err
	}
	enc := cfg.JSON.Encoding
	if jsonEncoding != "" {
		enc = jsonEncoding
	}
	if enc != "" {
		if req.Encoding, err = game.ParseEncoding(enc); err != nil {
			return req, err
		}
	} else {
		req.Encoding = game.Windows1252
	}
	if req.Version, err = game.ParseVersion(jsonGameVersion); err != nil {
		return req, err
	}
	req.JSON.Pretty = jsonPretty
	req.Interpolate = jsonInterpolate

	if game.IsGameExtension(input) {
		if req.Game, err = game.FromPath(input); err != nil {
			return req, err
		}
	}
	return req, nil
}

func init() {
	jsonCmd.Flags().BoolVar(&jsonPretty, "pretty", false, "indent the output")
	jsonCmd.Flags().StringVarP(&jsonDuplicateKeys, "duplicate-keys", "k", "", "duplicate key handling: preserve, group or key-value-pairs (default from config)")
	jsonCmd.Flags().StringVar(&jsonEncoding, "format", "", "encoding of files that are not saves: utf-8 or windows-1252 (default from config)")
	jsonCmd.Flags().BoolVar(&jsonInterpolate, "interpolate", false, "resolve @variables and @[expressions] in game files")
	jsonCmd.Flags().StringVar(&jsonGameVersion, "game-version", "", "game version selecting the token dictionary")
	rootCmd.AddCommand(jsonCmd)
}
