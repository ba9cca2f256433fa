// Package document is the structural model shared by the decoders and the
// formatters: scalars, containers, the event stream and the tree builder.
package document

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ScalarKind tags the variant held by a Scalar.
type ScalarKind uint8

// Scalar kinds.
const (
	KindString ScalarKind = iota + 1
	KindBool
	KindSigned
	KindUnsigned
	KindFloat
	KindDate
	KindUnknown
)

func (k ScalarKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindSigned:
		return "signed"
	case KindUnsigned:
		return "unsigned"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindUnknown:
		return "unknown"
	}
	return "invalid"
}

// Scalar is a tagged union of every leaf value a save can hold. Text keeps
// the source bytes unchanged; decoding to UTF-8 is left to the formatter.
type Scalar struct {
	Kind   ScalarKind
	Text   string
	Quoted bool
	Bool   bool
	Int    int64
	Uint   uint64
	Num    Decimal
	Date   Date
	// Token holds the raw id of an unresolved token.
	Token uint16
}

// String returns a string scalar.
func String(s string, quoted bool) Scalar {
	return Scalar{Kind: KindString, Text: s, Quoted: quoted}
}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{Kind: KindBool, Bool: b} }

// Signed returns a signed integer scalar.
func Signed(n int64) Scalar { return Scalar{Kind: KindSigned, Int: n} }

// Unsigned returns an unsigned integer scalar.
func Unsigned(n uint64) Scalar { return Scalar{Kind: KindUnsigned, Uint: n} }

// Float returns a decimal scalar.
func Float(d Decimal) Scalar { return Scalar{Kind: KindFloat, Num: d} }

// DateValue returns a date scalar.
func DateValue(d Date) Scalar { return Scalar{Kind: KindDate, Date: d} }

// Unknown returns the placeholder for a token id missing from the
// dictionary.
func Unknown(id uint16) Scalar { return Scalar{Kind: KindUnknown, Token: id} }

// UnknownName is the text used for an unresolved token.
func UnknownName(id uint16) string {
	return fmt.Sprintf("__unknown_0x%04x", id)
}

// Name renders the scalar the way it reads as an object key. Dates never
// carry hours here; callers that need them format the date directly.
func (s Scalar) Name() string {
	switch s.Kind {
	case KindString:
		return s.Text
	case KindBool:
		if s.Bool {
			return "yes"
		}
		return "no"
	case KindSigned:
		return strconv.FormatInt(s.Int, 10)
	case KindUnsigned:
		return strconv.FormatUint(s.Uint, 10)
	case KindFloat:
		return s.Num.String()
	case KindDate:
		return s.Date.String()
	case KindUnknown:
		return UnknownName(s.Token)
	}
	return ""
}

func (Scalar) node() {}

// Decimal is an exact number: Mantissa / 10^Scale, shifted by 10^Exp. Exp
// is zero except for magnitudes a fixed point int64 cannot reach.
type Decimal struct {
	Mantissa int64
	Scale    uint8
	Exp      int16
}

var pow10 = [...]uint64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000,
	1000000000, 10000000000, 100000000000, 1000000000000,
	10000000000000, 100000000000000, 1000000000000000,
	10000000000000000, 100000000000000000, 1000000000000000000,
}

// ParseDecimal parses a plain decimal literal such as "-12.500".
func ParseDecimal(s string) (Decimal, error) {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	intPart, frac, _ := strings.Cut(body, ".")
	if intPart == "" && frac == "" || len(frac) >= len(pow10) {
		return Decimal{}, eris.Errorf("document: invalid decimal %q", s)
	}
	digits := intPart + frac
	if digits == "" {
		digits = "0"
	}
	u, err := strconv.ParseUint(digits, 10, 63)
	if err != nil {
		return Decimal{}, eris.Errorf("document: invalid decimal %q", s)
	}
	m := int64(u)
	if neg {
		m = -m
	}
	return Decimal{Mantissa: m, Scale: uint8(len(frac))}, nil
}

// Float64 converts the decimal to the nearest float64.
func (d Decimal) Float64() float64 {
	return float64(d.Mantissa) / math.Pow10(int(d.Scale)) * math.Pow10(int(d.Exp))
}

// IsWhole reports whether the fractional digits are all zero.
func (d Decimal) IsWhole() bool {
	if d.Exp != 0 {
		return !strings.Contains(d.shifted(), ".")
	}
	_, frac := d.split()
	return frac == 0
}

func (d Decimal) split() (uint64, uint64) {
	abs := uint64(d.Mantissa)
	if d.Mantissa < 0 {
		abs = -abs
	}
	p := pow10[d.Scale]
	return abs / p, abs % p
}

// String formats the value with trailing fractional zeros removed and whole
// values written as integers.
func (d Decimal) String() string {
	return d.format(false)
}

// Fixed formats the value with exactly Scale fractional digits.
func (d Decimal) Fixed() string {
	return d.format(true)
}

func (d Decimal) format(keepScale bool) string {
	if d.Exp != 0 {
		return d.shifted()
	}
	ip, fp := d.split()
	var b strings.Builder
	if d.Mantissa < 0 {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(ip, 10))
	if d.Scale == 0 {
		return b.String()
	}
	frac := strconv.FormatUint(fp, 10)
	frac = strings.Repeat("0", int(d.Scale)-len(frac)) + frac
	if !keepScale {
		frac = strings.TrimRight(frac, "0")
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// shifted writes a Decimal with an exponent as a plain literal, moving the
// point instead of scaling the mantissa.
func (d Decimal) shifted() string {
	abs := uint64(d.Mantissa)
	if d.Mantissa < 0 {
		abs = -abs
	}
	if abs == 0 {
		return "0"
	}
	digits := strconv.FormatUint(abs, 10)
	point := len(digits) - int(d.Scale) + int(d.Exp)

	var b strings.Builder
	if d.Mantissa < 0 {
		b.WriteByte('-')
	}
	switch {
	case point <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -point))
		b.WriteString(strings.TrimRight(digits, "0"))
	case point >= len(digits):
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", point-len(digits)))
	default:
		b.WriteString(digits[:point])
		if frac := strings.TrimRight(digits[point:], "0"); frac != "" {
			b.WriteByte('.')
			b.WriteString(frac)
		}
	}
	return b.String()
}
