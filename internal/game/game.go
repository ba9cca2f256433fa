// Package game holds the per-game, per-version capability table that drives
// decoding, classification and formatting decisions.
package game

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Game identifies a supported title by its save file extension.
type Game string

// Supported games.
const (
	EU4       Game = "eu4"
	CK3       Game = "ck3"
	HOI4      Game = "hoi4"
	Imperator Game = "rome"
	Vic3      Game = "v3"
)

// All lists the supported games in table order.
var All = []Game{EU4, CK3, HOI4, Imperator, Vic3}

// Encoding is the text encoding of strings inside a save.
type Encoding string

// Text encodings.
const (
	Windows1252 Encoding = "windows-1252"
	UTF8        Encoding = "utf-8"
)

// ParseEncoding accepts the names used on the command line.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "windows-1252", "windows1252", "cp1252":
		return Windows1252, nil
	case "utf-8", "utf8":
		return UTF8, nil
	}
	return "", eris.Errorf("game: unknown encoding %q", s)
}

// EnvelopeStyle describes how a game's save files announce their format.
type EnvelopeStyle uint8

const (
	// MagicPrefix saves start with a short text marker like EU4bin.
	MagicPrefix EnvelopeStyle = iota + 1
	// SAVHeader saves start with a SAV header line carrying the
	// metadata length and the save kind.
	SAVHeader
)

// FloatEncoding selects how a float payload is turned into a decimal.
type FloatEncoding uint8

const (
	// Fixed3 is a 32-bit integer scaled by 1000.
	Fixed3 FloatEncoding = iota + 1
	// IEEE32 is an IEEE-754 binary32 value.
	IEEE32
	// Decimal5 is a 64-bit integer scaled by 10^5.
	Decimal5
	// Q49_15 is a 64-bit fixed point value with 15 fractional bits,
	// rounded to five decimals.
	Q49_15
)

// Capabilities is one row of the capability table.
type Capabilities struct {
	Game      Game
	Name      string
	Versions  VersionRange
	Extension string
	Encoding  Encoding
	Envelope  EnvelopeStyle

	// BinaryMagic and TextMagic are only set for MagicPrefix games.
	BinaryMagic string
	TextMagic   string

	F32 FloatEncoding
	F64 FloatEncoding
	// FloatKeys overrides the default encoding for specific keys.
	FloatKeys map[string]FloatEncoding

	// DateHours is set when dates carry an hour component.
	DateHours bool
	// MinDateYear and MaxDateYear bound the date heuristic.
	MinDateYear int
	MaxDateYear int
	// DateKeys are always decoded as dates.
	DateKeys map[string]bool
	// IntKeys are never decoded as dates.
	IntKeys map[string]bool
	// OmitKeys are dropped when melting unless retain is requested.
	OmitKeys map[string]bool

	// DatePath locates the in-game date for the watcher.
	DatePath []string
	// Frequency is the default snapshot frequency name.
	Frequency string
}

// FloatFor returns the encoding used for a float payload of the given
// width under key.
func (c *Capabilities) FloatFor(key string, width int) FloatEncoding {
	if enc, ok := c.FloatKeys[key]; ok {
		return enc
	}
	if width == 32 {
		return c.F32
	}
	return c.F64
}

// Omits reports whether key is dropped in normal melt mode.
func (c *Capabilities) Omits(key string) bool {
	return c.OmitKeys[key]
}

// UnsupportedError is returned for unknown games or versions outside every
// registered range.
type UnsupportedError struct {
	Game    string
	Version Version
}

func (e *UnsupportedError) Error() string {
	if e.Version.IsZero() {
		return fmt.Sprintf("unsupported game %q", e.Game)
	}
	return fmt.Sprintf("unsupported version %s for game %q", e.Version, e.Game)
}

// Parse converts a game name or alias into a Game.
func Parse(name string) (Game, error) {
	n := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	switch n {
	case "eu4":
		return EU4, nil
	case "ck3":
		return CK3, nil
	case "hoi4":
		return HOI4, nil
	case "rome", "imperator":
		return Imperator, nil
	case "v3", "vic3", "victoria3":
		return Vic3, nil
	}
	return "", &UnsupportedError{Game: name}
}

// FromPath detects the game from a file's extension. A dotfile without an
// extension, such as ".eu4", is detected from its name.
func FromPath(path string) (Game, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		if strings.HasPrefix(base, ".") {
			return Parse(base)
		}
		return "", eris.Errorf("game: unable to detect game from %q", path)
	}
	g, err := Parse(ext)
	if err != nil {
		return "", eris.Wrapf(err, "game: detect from %q", path)
	}
	return g, nil
}

// IsGameExtension reports whether path carries a known game extension.
func IsGameExtension(path string) bool {
	_, err := FromPath(path)
	return err == nil
}

// Lookup finds the capabilities for g at version v. A zero version selects
// the newest row for the game.
func Lookup(g Game, v Version) (*Capabilities, error) {
	var best *Capabilities
	for i := range table {
		row := &table[i]
		if row.Game != g {
			continue
		}
		if v.IsZero() {
			if best == nil || best.Versions.Min.Less(row.Versions.Min) {
				best = row
			}
			continue
		}
		if row.Versions.Contains(v) {
			return row, nil
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, &UnsupportedError{Game: string(g), Version: v}
}

// Version is a dotted game patch version.
type Version struct {
	Major, Minor, Patch int
}

// ParseVersion parses "1", "1.37" or "1.37.2". An empty string yields the
// zero version.
func ParseVersion(s string) (Version, error) {
	var v Version
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return v, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return v, eris.Errorf("game: invalid version %q", s)
	}
	dst := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, eris.Errorf("game: invalid version %q", s)
		}
		*dst[i] = n
	}
	return v, nil
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool { return v == Version{} }

// Less orders versions.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// VersionRange is an inclusive range. A zero Max is open ended.
type VersionRange struct {
	Min Version
	Max Version
}

// Contains reports whether v lies in the range.
func (r VersionRange) Contains(v Version) bool {
	if v.Less(r.Min) {
		return false
	}
	return r.Max.IsZero() || !r.Max.Less(v)
}

// Overlaps reports whether two ranges share a version.
func (r VersionRange) Overlaps(o VersionRange) bool {
	if !r.Max.IsZero() && r.Max.Less(o.Min) {
		return false
	}
	if !o.Max.IsZero() && o.Max.Less(r.Min) {
		return false
	}
	return true
}
