// Package tokens resolves binary token ids into their plaintext names.
package tokens

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/game"
)

// Resolver maps a token id to its name. Implementations are safe for
// concurrent reads.
type Resolver interface {
	Resolve(id uint16) (string, bool)
}

// Dictionary is an immutable id to name table.
type Dictionary struct {
	names map[uint16]string
}

// NewDictionary copies names into a new Dictionary.
func NewDictionary(names map[uint16]string) *Dictionary {
	m := make(map[uint16]string, len(names))
	for k, v := range names {
		m[k] = v
	}
	return &Dictionary{names: m}
}

// Resolve implements Resolver.
func (d *Dictionary) Resolve(id uint16) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.names[id]
	return name, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// ParseText reads "<id> <name>" lines. Ids are decimal or 0x prefixed hex;
// blank lines and lines starting with # are skipped.
func ParseText(r io.Reader) (*Dictionary, error) {
	names := make(map[uint16]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, eris.Errorf("tokens: line %d: expected \"<id> <name>\"", line)
		}
		id, err := ParseID(fields[0])
		if err != nil {
			return nil, eris.Wrapf(err, "tokens: line %d", line)
		}
		names[id] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "tokens: scan")
	}
	return &Dictionary{names: names}, nil
}

// ParseID parses a decimal or 0x prefixed hexadecimal token id.
func ParseID(s string) (uint16, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	n, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, eris.Errorf("tokens: invalid id %q", s)
	}
	return uint16(n), nil
}

type layer struct {
	versions game.VersionRange
	dict     *Dictionary
}

// Registry holds dictionaries for every game, layered by version range.
// It is built once and only read afterwards.
type Registry struct {
	layers map[game.Game][]layer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{layers: make(map[game.Game][]layer)}
}

// Add registers a dictionary for g covering versions. Ranges may overlap;
// the layer with the newest minimum version wins.
func (r *Registry) Add(g game.Game, versions game.VersionRange, d *Dictionary) {
	ls := append(r.layers[g], layer{versions: versions, dict: d})
	sort.SliceStable(ls, func(i, j int) bool {
		return ls[j].versions.Min.Less(ls[i].versions.Min)
	})
	r.layers[g] = ls
}

// Resolve looks up id for g at version v. A zero version searches every
// layer, newest first.
func (r *Registry) Resolve(g game.Game, v game.Version, id uint16) (string, bool) {
	for _, l := range r.layers[g] {
		if !v.IsZero() && !l.versions.Contains(v) {
			continue
		}
		if name, ok := l.dict.Resolve(id); ok {
			return name, true
		}
	}
	return "", false
}

// Size returns the total number of entries registered for g.
func (r *Registry) Size(g game.Game) int {
	n := 0
	for _, l := range r.layers[g] {
		n += l.dict.Len()
	}
	return n
}

// For returns a Resolver scoped to one game and version.
func (r *Registry) For(g game.Game, v game.Version) Resolver {
	return scoped{reg: r, game: g, version: v}
}

type scoped struct {
	reg     *Registry
	game    game.Game
	version game.Version
}

func (s scoped) Resolve(id uint16) (string, bool) {
	return s.reg.Resolve(s.game, s.version, id)
}
