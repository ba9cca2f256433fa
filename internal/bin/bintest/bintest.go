// Package bintest builds binary save fixtures for tests.
package bintest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rakaly/cli/internal/bin"
	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/tokens"
)

// Fixture token ids.
const (
	Date            uint16 = 0x3000
	Player          uint16 = 0x3001
	SavegameVersion uint16 = 0x3002
	First           uint16 = 0x3003
	Second          uint16 = 0x3004
	Levels          uint16 = 0x3005
	Color           uint16 = 0x3006
	IsIronman       uint16 = 0x3007
	MetaData        uint16 = 0x3008
	MetaDate        uint16 = 0x3009
	GameDate        uint16 = 0x300a
	Name            uint16 = 0x300b
	Provinces       uint16 = 0x300c
	BaseTax         uint16 = 0x300d
	IronmanManager  uint16 = 0x300e
	Flags           uint16 = 0x300f
	English         uint16 = 0x3010
	Countries       uint16 = 0x3011
	Treasury        uint16 = 0x3012
	Ironman         uint16 = 0x3013
	Culture         uint16 = 0x3014

	// Missing is never registered.
	Missing uint16 = 0x7777
)

var names = map[uint16]string{
	Date:            "date",
	Player:          "player",
	SavegameVersion: "savegame_version",
	First:           "first",
	Second:          "second",
	Levels:          "levels",
	Color:           "color",
	IsIronman:       "is_ironman",
	MetaData:        "meta_data",
	MetaDate:        "meta_date",
	GameDate:        "game_date",
	Name:            "name",
	Provinces:       "provinces",
	BaseTax:         "base_tax",
	IronmanManager:  "ironman_manager",
	Flags:           "flags",
	English:         "english",
	Countries:       "countries",
	Treasury:        "treasury",
	Ironman:         "ironman",
	Culture:         "culture",
}

// Dictionary returns the fixture dictionary.
func Dictionary() *tokens.Dictionary {
	return tokens.NewDictionary(names)
}

// TokenText renders the fixture dictionary in the <game>.txt format.
func TokenText() string {
	ids := make([]int, 0, len(names))
	for id := range names {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "0x%04x %s\n", id, names[uint16(id)])
	}
	return b.String()
}

// Builder appends tokens to a buffer.
type Builder struct {
	buf bytes.Buffer
}

// New returns an empty builder.
func New() *Builder { return &Builder{} }

// Raw appends bytes unchanged.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// ID appends a token id.
func (b *Builder) ID(id uint16) *Builder {
	_ = binary.Write(&b.buf, binary.LittleEndian, id)
	return b
}

// Field appends a token id followed by '='.
func (b *Builder) Field(id uint16) *Builder { return b.ID(id).Eq() }

// Eq appends '='.
func (b *Builder) Eq() *Builder { return b.ID(bin.IDEqual) }

// Open appends '{'.
func (b *Builder) Open() *Builder { return b.ID(bin.IDOpen) }

// Close appends '}'.
func (b *Builder) Close() *Builder { return b.ID(bin.IDClose) }

// RGB appends the rgb header token.
func (b *Builder) RGB() *Builder { return b.ID(bin.IDRGB) }

// I32 appends an i32 scalar.
func (b *Builder) I32(v int32) *Builder {
	b.ID(bin.IDI32)
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// Date appends a date as its i32 encoding.
func (b *Builder) Date(d document.Date) *Builder { return b.I32(int32(d.Raw())) }

// U32 appends a u32 scalar.
func (b *Builder) U32(v uint32) *Builder {
	b.ID(bin.IDU32)
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// I64 appends an i64 scalar.
func (b *Builder) I64(v int64) *Builder {
	b.ID(bin.IDI64)
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// U64 appends a u64 scalar.
func (b *Builder) U64(v uint64) *Builder {
	b.ID(bin.IDU64)
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// F32 appends an f32 payload given its raw integer bits.
func (b *Builder) F32(raw int32) *Builder {
	b.ID(bin.IDF32)
	_ = binary.Write(&b.buf, binary.LittleEndian, raw)
	return b
}

// F32IEEE appends an f32 payload holding an IEEE value.
func (b *Builder) F32IEEE(v float32) *Builder {
	b.ID(bin.IDF32)
	_ = binary.Write(&b.buf, binary.LittleEndian, math.Float32bits(v))
	return b
}

// F64 appends an f64 payload given its raw integer bits.
func (b *Builder) F64(raw int64) *Builder {
	b.ID(bin.IDF64)
	_ = binary.Write(&b.buf, binary.LittleEndian, raw)
	return b
}

// Bool appends a boolean.
func (b *Builder) Bool(v bool) *Builder {
	b.ID(bin.IDBool)
	if v {
		b.buf.WriteByte(1)
	} else {
		b.buf.WriteByte(0)
	}
	return b
}

// Quoted appends a quoted string.
func (b *Builder) Quoted(s string) *Builder { return b.text(bin.IDQuoted, s) }

// Unquoted appends an unquoted string.
func (b *Builder) Unquoted(s string) *Builder { return b.text(bin.IDUnquoted, s) }

func (b *Builder) text(id uint16, s string) *Builder {
	b.ID(id)
	_ = binary.Write(&b.buf, binary.LittleEndian, uint16(len(s)))
	b.buf.WriteString(s)
	return b
}

// Bytes returns a copy of the built stream.
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Len returns the number of bytes built so far.
func (b *Builder) Len() int { return b.buf.Len() }
