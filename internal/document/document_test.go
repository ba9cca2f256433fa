package document

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFromRaw_Epoch(t *testing.T) {
	d := DateFromRaw(0)
	y, m, dd := d.YMD()
	assert.Equal(t, EpochYear, y)
	assert.Equal(t, 1, m)
	assert.Equal(t, 1, dd)
	assert.Equal(t, "-5000.1.1", d.String())
}

func TestDateFromRaw_Negative(t *testing.T) {
	d := DateFromRaw(-24)
	assert.Equal(t, "-5001.12.31", d.String())
	assert.Equal(t, uint8(0), d.Hour)

	d = DateFromRaw(-1)
	assert.Equal(t, "-5001.12.31", d.String())
	assert.Equal(t, uint8(23), d.Hour)
}

func TestDate_RoundTrip(t *testing.T) {
	d := MustDate(1444, 11, 11)
	assert.Equal(t, "1444.11.11", d.String())
	assert.Equal(t, "1444-11-11", d.ISO())
	assert.Equal(t, d, DateFromRaw(d.Raw()))

	// 1444.11.11 in the binary format.
	assert.Equal(t, int64(56456976), d.Raw())

	zero := MustDate(0, 1, 1)
	assert.Equal(t, "0.1.1", zero.String())
	assert.Equal(t, zero, DateFromRaw(zero.Raw()))

	neg := MustDate(-50, 6, 30)
	assert.Equal(t, "-50.6.30", neg.String())
	assert.Equal(t, "-50-06-30", neg.ISO())
}

func TestDate_Hours(t *testing.T) {
	d := MustDate(1936, 1, 1).WithHour(12)
	assert.Equal(t, "1936.1.1.12", d.StringWithHour())
	assert.Equal(t, d, DateFromRaw(d.Raw()))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("1444.11.11")
	require.NoError(t, err)
	assert.Equal(t, MustDate(1444, 11, 11), d)

	d, err = ParseDate("-100.2.28")
	require.NoError(t, err)
	assert.Equal(t, -100, d.Year())

	d, err = ParseDate("1936.1.1.5")
	require.NoError(t, err)
	assert.Equal(t, uint8(5), d.Hour)

	for _, bad := range []string{"1444.13.1", "1444.2.29", "1444.1", "a.b.c", "1.1.1.30", "1..1"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDate_Compare(t *testing.T) {
	a := MustDate(1444, 11, 11)
	b := MustDate(1445, 1, 1)
	assert.True(t, a.Before(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestDecimal_Format(t *testing.T) {
	tests := []struct {
		d     Decimal
		str   string
		fixed string
	}{
		{Decimal{Mantissa: 100000, Scale: 5}, "1", "1.00000"},
		{Decimal{Mantissa: -150, Scale: 3}, "-0.15", "-0.150"},
		{Decimal{Mantissa: 0, Scale: 3}, "0", "0.000"},
		{Decimal{Mantissa: 42, Scale: 0}, "42", "42"},
		{Decimal{Mantissa: -1, Scale: 5}, "-0.00001", "-0.00001"},
		{Decimal{Mantissa: 1234567, Scale: 3}, "1234.567", "1234.567"},
		{Decimal{Mantissa: 34, Scale: 1, Exp: 3}, "3400", "3400"},
		{Decimal{Mantissa: -15, Exp: -3}, "-0.015", "-0.015"},
		{Decimal{Mantissa: 125, Exp: -1}, "12.5", "12.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.d.String())
		assert.Equal(t, tt.fixed, tt.d.Fixed())
	}
	assert.True(t, Decimal{Mantissa: 5000, Scale: 3}.IsWhole())
	assert.False(t, Decimal{Mantissa: 5001, Scale: 3}.IsWhole())
	assert.True(t, Decimal{Mantissa: 1, Exp: 20}.IsWhole())
	assert.False(t, Decimal{Mantissa: 1, Exp: -20}.IsWhole())
	assert.InDelta(t, 1.234567, Decimal{Mantissa: 1234567, Scale: 6}.Float64(), 1e-12)
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal("-12.500")
	require.NoError(t, err)
	assert.Equal(t, Decimal{Mantissa: -12500, Scale: 3}, d)

	d, err = ParseDecimal("7")
	require.NoError(t, err)
	assert.Equal(t, Decimal{Mantissa: 7, Scale: 0}, d)

	for _, bad := range []string{"", "-", "abc", "1e5", "1.2.3"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}
}

func TestScalar_Name(t *testing.T) {
	assert.Equal(t, "abc", String("abc", true).Name())
	assert.Equal(t, "yes", Bool(true).Name())
	assert.Equal(t, "-3", Signed(-3).Name())
	assert.Equal(t, "3", Unsigned(3).Name())
	assert.Equal(t, "0.5", Float(Decimal{Mantissa: 500, Scale: 3}).Name())
	assert.Equal(t, "__unknown_0x1234", Unknown(0x1234).Name())
	assert.Equal(t, "__unknown_0x00ff", Unknown(0xff).Name())
}

func TestBuild(t *testing.T) {
	src := SliceSource(
		Event{Kind: EventKey, Scalar: String("a", false)},
		Event{Kind: EventScalar, Scalar: Signed(1)},
		Event{Kind: EventKey, Scalar: String("obj", false)},
		Event{Kind: EventOpenObject},
		Event{Kind: EventKey, Scalar: String("b", false)},
		Event{Kind: EventScalar, Scalar: String("c", true)},
		Event{Kind: EventClose},
		Event{Kind: EventKey, Scalar: String("levels", false)},
		Event{Kind: EventOpenArray},
		Event{Kind: EventScalar, Scalar: Signed(10)},
		Event{Kind: EventOpenHidden},
		Event{Kind: EventKey, Scalar: Signed(0)},
		Event{Kind: EventScalar, Scalar: Signed(2)},
		Event{Kind: EventClose},
		Event{Kind: EventClose},
	)
	doc, err := Build(src)
	require.NoError(t, err)
	require.Len(t, doc.Entries, 3)

	v, ok := doc.Lookup("obj", "b")
	require.True(t, ok)
	assert.Equal(t, String("c", true), v)

	levels, ok := doc.Get("levels")
	require.True(t, ok)
	arr := levels.(*Array)
	require.Len(t, arr.Values, 2)
	hidden := arr.Values[1].(*Object)
	assert.True(t, hidden.Hidden)
	assert.Equal(t, "0", hidden.Entries[0].Key.Name())
}

func TestBuild_ReplayIsIdentity(t *testing.T) {
	doc := &Object{Entries: []Entry{
		{Key: String("a", false), Value: Signed(1)},
		{Key: String("a", false), Op: OpGreater, Value: Signed(2)},
		{Key: String("color", false), Value: &Array{Header: "rgb", Values: []Node{Signed(1), Signed(2), Signed(3)}}},
		{Key: String("empty", false), Value: &Array{}},
	}}
	again, err := Build(doc.Events())
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(SliceSource(Event{Kind: EventClose}))
	assert.Error(t, err)

	_, err = Build(SliceSource(Event{Kind: EventScalar, Scalar: Signed(1)}))
	assert.Error(t, err)

	_, err = Build(SliceSource(
		Event{Kind: EventKey, Scalar: String("a", false)},
		Event{Kind: EventOpenObject},
	))
	assert.Error(t, err)

	_, err = Build(SliceSource(Event{Kind: EventKey, Scalar: String("a", false)}))
	assert.Error(t, err)
}

func TestSliceSource_EOF(t *testing.T) {
	src := SliceSource()
	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
}
