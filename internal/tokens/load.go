package tokens

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rakaly/cli/internal/game"
)

// yamlLayer is one entry of a <game>.yaml dictionary file.
type yamlLayer struct {
	MinVersion string            `yaml:"min_version"`
	MaxVersion string            `yaml:"max_version"`
	Tokens     map[string]string `yaml:"tokens"`
}

// ParseYAML reads versioned dictionary layers and registers them for g.
func ParseYAML(r io.Reader, g game.Game, reg *Registry) error {
	var layers []yamlLayer
	if err := yaml.NewDecoder(r).Decode(&layers); err != nil {
		if eris.Is(err, io.EOF) {
			return nil
		}
		return eris.Wrap(err, "tokens: decode yaml")
	}
	for i, l := range layers {
		lo, err := game.ParseVersion(l.MinVersion)
		if err != nil {
			return eris.Wrapf(err, "tokens: layer %d", i)
		}
		hi, err := game.ParseVersion(l.MaxVersion)
		if err != nil {
			return eris.Wrapf(err, "tokens: layer %d", i)
		}
		names := make(map[uint16]string, len(l.Tokens))
		for k, name := range l.Tokens {
			id, err := ParseID(k)
			if err != nil {
				return eris.Wrapf(err, "tokens: layer %d", i)
			}
			names[id] = name
		}
		reg.Add(g, game.VersionRange{Min: lo, Max: hi}, &Dictionary{names: names})
	}
	return nil
}

// LoadDir builds a registry from <game>.txt and <game>.yaml files in dir.
// Missing files leave that game's dictionary empty so every id is reported
// as unknown rather than failing the load.
func LoadDir(dir string) (*Registry, error) {
	reg := NewRegistry()
	if dir == "" {
		return reg, nil
	}
	for _, g := range game.All {
		txt := filepath.Join(dir, string(g)+".txt")
		if err := loadFile(txt, func(r io.Reader) error {
			d, err := ParseText(r)
			if err != nil {
				return err
			}
			reg.Add(g, game.VersionRange{}, d)
			return nil
		}); err != nil {
			return nil, eris.Wrapf(err, "tokens: load %s", txt)
		}

		yml := filepath.Join(dir, string(g)+".yaml")
		if err := loadFile(yml, func(r io.Reader) error {
			return ParseYAML(r, g, reg)
		}); err != nil {
			return nil, eris.Wrapf(err, "tokens: load %s", yml)
		}

		zap.L().Debug("tokens loaded",
			zap.String("game", string(g)),
			zap.Int("entries", reg.Size(g)),
		)
	}
	return reg, nil
}

func loadFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck
	return fn(f)
}
