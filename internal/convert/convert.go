// Package convert ties the decoders and formatters together for one input:
// melting a binary save to plaintext, or rendering any save or game file as
// JSON. The CLI and the HTTP service share it.
package convert

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/bin"
	"github.com/rakaly/cli/internal/classify"
	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/envelope"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/interpolate"
	"github.com/rakaly/cli/internal/jsonfmt"
	"github.com/rakaly/cli/internal/melt"
	"github.com/rakaly/cli/internal/text"
	"github.com/rakaly/cli/internal/tokens"
)

// ErrInterpolateGameFile rejects interpolation of save files; it only
// applies to plain game script files.
var ErrInterpolateGameFile = errors.New("convert: interpolation only applies to files that are not saves")

// Converter resolves tokens through a shared, read-only registry.
type Converter struct {
	Registry *tokens.Registry
}

// New returns a Converter over reg.
func New(reg *tokens.Registry) *Converter {
	return &Converter{Registry: reg}
}

// MeltRequest describes one melt.
type MeltRequest struct {
	Game    game.Game
	Version game.Version
	Options melt.Options
}

// Melt writes the plaintext rendition of a save to w. A save that is
// already plaintext is copied through unchanged.
func (c *Converter) Melt(ctx context.Context, data []byte, req MeltRequest, w io.Writer) (*melt.Result, error) {
	caps, err := game.Lookup(req.Game, req.Version)
	if err != nil {
		return nil, err
	}
	m := melt.New(c.Registry.For(caps.Game, req.Version))
	res, err := m.Melt(ctx, data, caps, req.Options, w)
	if errors.Is(err, melt.ErrNotBinary) {
		zap.L().Info("convert: save is already plaintext, copying", zap.String("game", string(caps.Game)))
		if _, err := w.Write(data); err != nil {
			return nil, eris.Wrap(err, "convert: copy plaintext save")
		}
		return &melt.Result{}, nil
	}
	return res, err
}

// JSONRequest describes one JSON conversion. An empty Game treats the input
// as a plain text file in Encoding.
type JSONRequest struct {
	Game        game.Game
	Version     game.Version
	Encoding    game.Encoding
	Interpolate bool
	JSON        jsonfmt.Options
}

// JSON writes data as JSON to w.
func (c *Converter) JSON(ctx context.Context, data []byte, req JSONRequest, w io.Writer) error {
	var (
		doc  *document.Object
		opts = req.JSON
		err  error
	)
	if req.Game == "" {
		doc, err = c.plainDocument(data, req)
		opts.Encoding = ""
	} else {
		if req.Interpolate {
			return ErrInterpolateGameFile
		}
		var caps *game.Capabilities
		caps, err = game.Lookup(req.Game, req.Version)
		if err != nil {
			return err
		}
		opts.DateHours = caps.DateHours
		doc, opts.Encoding, err = c.saveDocument(ctx, data, caps, req.Version)
	}
	if err != nil {
		return err
	}
	return jsonfmt.Format(w, doc, opts)
}

func (c *Converter) plainDocument(data []byte, req JSONRequest) (*document.Object, error) {
	decoded, err := text.Decode(data, req.Encoding)
	if err != nil {
		return nil, err
	}
	doc, err := text.Parse(decoded)
	if err != nil {
		return nil, err
	}
	if req.Interpolate {
		if err := interpolate.Apply(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// saveDocument builds the gamestate of a save into one tree. Binary strings
// are left in the game's encoding, which is returned for the formatter.
func (c *Converter) saveDocument(ctx context.Context, data []byte, caps *game.Capabilities, v game.Version) (*document.Object, game.Encoding, error) {
	file, err := envelope.Parse(data)
	if err != nil {
		return nil, "", err
	}
	root := &document.Object{}
	cls := classify.New(caps, c.Registry.For(caps.Game, v))

	for _, sec := range file.Body {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		part, err := c.section(sec, file.Encoding, caps, cls)
		if err != nil {
			return nil, "", eris.Wrapf(err, "convert: section %s", sec.Name)
		}
		root.Entries = append(root.Entries, part.Entries...)
	}
	if file.Encoding == envelope.Binary {
		return root, caps.Encoding, nil
	}
	return root, "", nil
}

func (c *Converter) section(sec envelope.Section, enc envelope.Encoding, caps *game.Capabilities, cls *classify.Classifier) (*document.Object, error) {
	if enc == envelope.Text {
		raw, err := sec.ReadAll()
		if err != nil {
			return nil, err
		}
		decoded, err := text.Decode(raw, caps.Encoding)
		if err != nil {
			return nil, err
		}
		return text.Parse(decoded)
	}
	rc, err := sec.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return document.Build(bin.NewDecoder(rc, cls))
}
