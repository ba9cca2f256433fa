package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rakaly/cli/internal/convert"
	"github.com/rakaly/cli/internal/fsutil"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/melt"
	"github.com/rakaly/cli/internal/watch"
)

var (
	meltFormat      string
	meltToStdout    bool
	meltOut         string
	meltUnknownKey  string
	meltRetain      bool
	meltGameVersion string
)

var meltCmd = &cobra.Command{
	Use:   "melt [inputs...]",
	Short: "Convert binary saves to plaintext",
	Long:  "Melts each input to <stem>_melted<ext> next to it. Without inputs the save is read from stdin and written to stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := melt.Options{Retain: cfg.Melt.Retain}
		if cmd.Flags().Changed("retain") {
			opts.Retain = meltRetain
		}
		policy := cfg.Melt.UnknownKey
		if meltUnknownKey != "" {
			policy = meltUnknownKey
		}
		var err error
		if opts.UnknownKey, err = melt.ParseUnknownPolicy(policy); err != nil {
			return err
		}
		version, err := game.ParseVersion(meltGameVersion)
		if err != nil {
			return err
		}
		if len(args) > 1 && meltOut != "" {
			return eris.New("--out only applies to a single input")
		}

		conv, err := newConverter()
		if err != nil {
			return err
		}
		m := &melter{
			conv:    conv,
			opts:    opts,
			version: version,
			stdout:  cmd.OutOrStdout(),
			stderr:  cmd.ErrOrStderr(),
		}
		if len(args) == 0 {
			return m.stdin(cmd.Context(), cmd.InOrStdin())
		}
		return m.files(cmd.Context(), args)
	},
}

type melter struct {
	conv    *convert.Converter
	opts    melt.Options
	version game.Version
	stdout  io.Writer
	stderr  io.Writer
}

func (m *melter) request(input string) (convert.MeltRequest, error) {
	req := convert.MeltRequest{Version: m.version, Options: m.opts}
	var err error
	if meltFormat != "" {
		req.Game, err = game.Parse(meltFormat)
	} else {
		req.Game, err = game.FromPath(input)
	}
	return req, err
}

func (m *melter) stdin(ctx context.Context, in io.Reader) error {
	if meltFormat == "" {
		return eris.New("--format is required when reading from stdin")
	}
	req, err := m.request("")
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return eris.Wrap(err, "melt: read stdin")
	}
	var buf bytes.Buffer
	res, err := m.conv.Melt(ctx, data, req, &buf)
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(m.stdout); err != nil {
		return eris.Wrap(err, "melt: write stdout")
	}
	return m.report(res.UnknownTokens)
}

// files melts every input concurrently. Stdout output is buffered per
// input and written in argument order.
func (m *melter) files(ctx context.Context, inputs []string) error {
	unknown := make([][]uint16, len(inputs))
	buffers := make([]bytes.Buffer, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Melt.Concurrency, 1))
	for i, input := range inputs {
		g.Go(func() error {
			var w io.Writer
			if meltToStdout {
				w = &buffers[i]
			}
			ids, err := m.file(ctx, input, w)
			if err != nil {
				return eris.Wrapf(err, "melt %s", input)
			}
			unknown[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if meltToStdout {
		for i := range buffers {
			if _, err := buffers[i].WriteTo(m.stdout); err != nil {
				return eris.Wrap(err, "melt: write stdout")
			}
		}
	}
	var all []uint16
	for _, ids := range unknown {
		all = append(all, ids...)
	}
	return m.report(all)
}

// file melts one input to w, or to its output file when w is nil.
func (m *melter) file(ctx context.Context, input string, w io.Writer) ([]uint16, error) {
	req, err := m.request(input)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, eris.Wrap(err, "read input")
	}

	if w != nil {
		res, err := m.conv.Melt(ctx, data, req, w)
		if err != nil {
			return nil, err
		}
		return res.UnknownTokens, nil
	}

	dest := meltOut
	if dest == "" {
		dest = meltedPath(input)
	}
	out, err := fsutil.Create(dest)
	if err != nil {
		return nil, err
	}
	defer out.Abort()
	res, err := m.conv.Melt(ctx, data, req, out)
	if err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	zap.L().Info("melted", zap.String("input", input), zap.String("output", dest))
	return res.UnknownTokens, nil
}

// report lists unknown token ids on stderr. Any unknown token makes the
// command exit with status 1.
func (m *melter) report(ids []uint16) error {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint16]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(m.stderr, "%04x\n", id)
	}
	return &exitError{code: 1, err: eris.Errorf("%d unknown tokens encountered", len(seen))}
}

// meltedPath returns <stem>_melted<ext> beside input, or melted<ext> for
// a dotfile such as ".eu4".
func meltedPath(input string) string {
	stem, ext := watch.SplitName(input)
	if stem == "" {
		return filepath.Join(filepath.Dir(input), "melted"+ext)
	}
	return filepath.Join(filepath.Dir(input), stem+"_melted"+ext)
}

func init() {
	meltCmd.Flags().StringVar(&meltFormat, "format", "", "game of the input (eu4, ck3, hoi4, imperator, vic3); detected from the extension when omitted")
	meltCmd.Flags().BoolVarP(&meltToStdout, "to-stdout", "c", false, "write to stdout instead of a file")
	meltCmd.Flags().StringVarP(&meltOut, "out", "o", "", "output path (single input only)")
	meltCmd.Flags().StringVar(&meltUnknownKey, "unknown-key", "", "unknown token policy: error or stringify (default from config)")
	meltCmd.Flags().BoolVar(&meltRetain, "retain", false, "keep ironman fields and exact float scale")
	meltCmd.Flags().StringVar(&meltGameVersion, "game-version", "", "game version selecting the token dictionary")
	rootCmd.AddCommand(meltCmd)
}
