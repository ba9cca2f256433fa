// Package classify turns raw binary payloads into typed scalars. The binary
// format has no universal discriminant for numbers, so integers, dates and
// the two fixed point float layouts are told apart by tag, key and range.
package classify

import (
	"encoding/binary"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/tokens"
)

// Tag is the wire type of a payload.
type Tag uint8

// Wire types.
const (
	TagBool Tag = iota + 1
	TagQuoted
	TagUnquoted
	TagI32
	TagU32
	TagI64
	TagU64
	TagF32
	TagF64
	// TagToken is a dictionary token; the payload is its little endian id.
	TagToken
)

// Classifier is bound to one game's capabilities and token resolver. It
// holds no mutable state.
type Classifier struct {
	caps     *game.Capabilities
	resolver tokens.Resolver
}

// New returns a Classifier.
func New(caps *game.Capabilities, resolver tokens.Resolver) *Classifier {
	return &Classifier{caps: caps, resolver: resolver}
}

// Capabilities returns the game row the classifier was built with.
func (c *Classifier) Capabilities() *game.Capabilities { return c.caps }

// Classify decodes raw according to tag. key is the name of the entry that
// owns the value, or the enclosing array's key for array elements. Payloads
// shorter than their tag requires decode as zero; the lexer guarantees
// lengths.
func (c *Classifier) Classify(tag Tag, raw []byte, key string) document.Scalar {
	switch tag {
	case TagBool:
		return document.Bool(len(raw) > 0 && raw[0] != 0)
	case TagQuoted:
		return document.String(string(raw), true)
	case TagUnquoted:
		return document.String(string(raw), false)
	case TagU32:
		return document.Unsigned(uint64(u32(raw)))
	case TagU64:
		return document.Unsigned(u64(raw))
	case TagI64:
		return document.Signed(int64(u64(raw)))
	case TagI32:
		n := int32(u32(raw))
		if d, ok := c.Date(n, key); ok {
			return document.DateValue(d)
		}
		return document.Signed(int64(n))
	case TagF32:
		return document.Float(DecodeFloat(c.caps.FloatFor(key, 32), raw))
	case TagF64:
		return document.Float(DecodeFloat(c.caps.FloatFor(key, 64), raw))
	case TagToken:
		id := uint16(0)
		if len(raw) >= 2 {
			id = binary.LittleEndian.Uint16(raw)
		}
		if c.resolver != nil {
			if name, ok := c.resolver.Resolve(id); ok {
				return document.String(name, false)
			}
		}
		return document.Unknown(id)
	}
	return document.String(string(raw), false)
}

// Date applies the date rules to an i32 payload: deny-listed keys are
// integers, allow-listed keys are dates at any value, anything else is a
// date only inside the game's plausible calendar range.
func (c *Classifier) Date(raw int32, key string) (document.Date, bool) {
	if c.caps.IntKeys[key] {
		return document.Date{}, false
	}
	d := document.DateFromRaw(int64(raw))
	if c.caps.DateKeys[key] {
		return d, true
	}
	if !c.caps.DateHours && d.Hour != 0 {
		return document.Date{}, false
	}
	y := d.Year()
	if y < c.caps.MinDateYear || y > c.caps.MaxDateYear {
		return document.Date{}, false
	}
	return d, true
}

// DecodeFloat converts a float payload into an exact decimal.
func DecodeFloat(enc game.FloatEncoding, raw []byte) document.Decimal {
	switch enc {
	case game.Fixed3:
		return document.Decimal{Mantissa: int64(int32(u32(raw))), Scale: 3}
	case game.IEEE32:
		return fromFloat32(math.Float32frombits(u32(raw)))
	case game.Decimal5:
		return document.Decimal{Mantissa: int64(u64(raw)), Scale: 5}
	case game.Q49_15:
		return fromQ49(int64(u64(raw)))
	}
	return document.Decimal{}
}

func fromFloat32(f float32) document.Decimal {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return document.Decimal{}
	}
	if d, err := document.ParseDecimal(strconv.FormatFloat(float64(f), 'f', -1, 32)); err == nil {
		return d
	}
	// Too many digits for fixed point: keep the shortest form and its
	// exponent instead.
	sci := strconv.FormatFloat(float64(f), 'e', -1, 32)
	mant, exp, _ := strings.Cut(sci, "e")
	d, err := document.ParseDecimal(mant)
	if err != nil {
		return document.Decimal{}
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return document.Decimal{}
	}
	d.Exp = int16(e)
	return d
}

// fromQ49 rounds raw/2^15 half away from zero to five decimals using 128
// bit intermediates.
func fromQ49(raw int64) document.Decimal {
	neg := raw < 0
	abs := uint64(raw)
	if neg {
		abs = -abs
	}
	hi, lo := bits.Mul64(abs, 100000)
	lo, carry := bits.Add64(lo, 1<<14, 0)
	hi += carry
	var q uint64
	if hi >= 1<<15 {
		q = math.MaxInt64
	} else {
		q, _ = bits.Div64(hi, lo, 1<<15)
		if q > math.MaxInt64 {
			q = math.MaxInt64
		}
	}
	m := int64(q)
	if neg {
		m = -m
	}
	return document.Decimal{Mantissa: m, Scale: 5}
}

func u32(raw []byte) uint32 {
	if len(raw) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(raw)
}

func u64(raw []byte) uint64 {
	if len(raw) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(raw)
}
