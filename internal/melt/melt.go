package melt

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/bin"
	"github.com/rakaly/cli/internal/classify"
	"github.com/rakaly/cli/internal/envelope"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/tokens"
)

// ErrNotBinary is returned when the input is already plaintext.
var ErrNotBinary = errors.New("melt: save is not binary")

var textMagic = map[string]string{
	"EU4bin":  "EU4txt",
	"HOI4bin": "HOI4txt",
}

// Melter converts binary saves of one game version.
type Melter struct {
	Resolver tokens.Resolver
}

// New returns a Melter resolving tokens through r.
func New(r tokens.Resolver) *Melter {
	return &Melter{Resolver: r}
}

// Melt writes the plaintext rendition of data to w.
func (m *Melter) Melt(ctx context.Context, data []byte, caps *game.Capabilities, opts Options, w io.Writer) (*Result, error) {
	file, err := envelope.Parse(data)
	if err != nil {
		return nil, err
	}
	if file.Encoding != envelope.Binary {
		return nil, ErrNotBinary
	}

	cls := classify.New(caps, m.Resolver)
	bw := bufio.NewWriter(w)
	unknown := make(map[uint16]struct{})

	if file.Header != nil {
		var meta bytes.Buffer
		if file.Meta != nil {
			if err := m.section(ctx, *file.Meta, cls, opts, &meta, unknown); err != nil {
				return nil, err
			}
			if meta.Len() > 0 {
				meta.WriteByte('\n')
			}
		}
		bw.WriteString(file.Header.Plaintext(meta.Len()).String())
		bw.WriteByte('\n')
		bw.Write(meta.Bytes())
	} else if file.Magic != "" {
		bw.WriteString(textMagic[file.Magic])
		bw.WriteByte('\n')
	}

	f := NewFormatter(bw, caps, opts)
	f.unknown = unknown
	for _, sec := range file.Body {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		zap.L().Debug("melt: section", zap.String("section", sec.Name), zap.String("game", string(caps.Game)))
		rc, err := sec.Open()
		if err != nil {
			return nil, err
		}
		err = f.Format(bin.NewDecoder(rc, cls))
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrapf(err, "melt: section %s", sec.Name)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, eris.Wrap(err, "melt: flush output")
	}
	return f.Result(), nil
}

func (m *Melter) section(ctx context.Context, sec envelope.Section, cls *classify.Classifier, opts Options, w io.Writer, unknown map[uint16]struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rc, err := sec.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck
	f := NewFormatter(w, cls.Capabilities(), opts)
	f.unknown = unknown
	if err := f.Format(bin.NewDecoder(rc, cls)); err != nil {
		return eris.Wrapf(err, "melt: section %s", sec.Name)
	}
	return nil
}
