// Package jsonfmt renders documents as JSON. Objects may repeat keys, so
// output is written directly rather than through encoding/json.
package jsonfmt

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/text"
)

// DuplicateKeys selects how repeated keys are written.
type DuplicateKeys uint8

// Duplicate key modes.
const (
	// Preserve writes every entry, repeating keys.
	Preserve DuplicateKeys = iota
	// Group merges same-named siblings into an array at the first
	// occurrence.
	Group
	// KeyValuePairs writes objects as {"type":"obj","val":[[k,v],...]}.
	KeyValuePairs
)

// ParseDuplicateKeys accepts preserve, group and key-value-pairs.
func ParseDuplicateKeys(s string) (DuplicateKeys, error) {
	switch strings.ToLower(s) {
	case "", "preserve":
		return Preserve, nil
	case "group":
		return Group, nil
	case "key-value-pairs", "kvp":
		return KeyValuePairs, nil
	}
	return 0, eris.Errorf("jsonfmt: unknown duplicate key mode %q", s)
}

func (d DuplicateKeys) String() string {
	switch d {
	case Group:
		return "group"
	case KeyValuePairs:
		return "key-value-pairs"
	}
	return "preserve"
}

// Options control the output.
type Options struct {
	Pretty        bool
	DuplicateKeys DuplicateKeys
	// Encoding is applied to keys and strings before writing.
	Encoding game.Encoding
	// DateHours appends the hour to dates.
	DateHours bool
}

// Format writes doc to w.
func Format(w io.Writer, doc *document.Object, opts Options) error {
	e := &encoder{w: bufio.NewWriter(w), opts: opts}
	e.object(doc, true)
	return eris.Wrap(e.w.Flush(), "jsonfmt: write")
}

// Marshal returns doc as JSON.
func Marshal(doc *document.Object, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Format(&buf, doc, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w     *bufio.Writer
	opts  Options
	depth int
}

func (e *encoder) open(c byte) {
	e.w.WriteByte(c)
	e.depth++
}

func (e *encoder) close(c byte) {
	e.depth--
	e.newline()
	e.w.WriteByte(c)
}

func (e *encoder) newline() {
	if !e.opts.Pretty {
		return
	}
	e.w.WriteByte('\n')
	for i := 0; i < e.depth; i++ {
		e.w.WriteString("  ")
	}
}

// item starts the i-th member of the innermost container.
func (e *encoder) item(i int) {
	if i > 0 {
		e.w.WriteByte(',')
	}
	e.newline()
}

func (e *encoder) key(k string) {
	e.str(k)
	e.w.WriteByte(':')
	if e.opts.Pretty {
		e.w.WriteByte(' ')
	}
}

func (e *encoder) object(o *document.Object, root bool) {
	if e.opts.DuplicateKeys == KeyValuePairs {
		e.pairs(o)
		return
	}
	if len(o.Entries) == 0 {
		if root {
			e.w.WriteString("{}")
		} else {
			e.w.WriteString("[]")
		}
		return
	}

	e.open('{')
	if e.opts.DuplicateKeys == Group {
		var order []string
		groups := make(map[string][]document.Entry)
		for _, en := range o.Entries {
			name := e.keyName(en.Key)
			if _, ok := groups[name]; !ok {
				order = append(order, name)
			}
			groups[name] = append(groups[name], en)
		}
		for i, name := range order {
			e.item(i)
			e.key(name)
			group := groups[name]
			if len(group) == 1 {
				e.entryValue(group[0])
				continue
			}
			e.open('[')
			for j, en := range group {
				e.item(j)
				e.entryValue(en)
			}
			e.close(']')
		}
	} else {
		for i, en := range o.Entries {
			e.item(i)
			e.key(e.keyName(en.Key))
			e.entryValue(en)
		}
	}
	e.close('}')
}

func (e *encoder) pairs(o *document.Object) {
	e.open('{')
	e.item(0)
	e.key("type")
	e.str("obj")
	e.item(1)
	e.key("val")
	if len(o.Entries) == 0 {
		e.w.WriteString("[]")
	} else {
		e.open('[')
		for i, en := range o.Entries {
			e.item(i)
			e.open('[')
			e.item(0)
			e.str(e.keyName(en.Key))
			e.item(1)
			e.entryValue(en)
			e.close(']')
		}
		e.close(']')
	}
	e.close('}')
}

func (e *encoder) entryValue(en document.Entry) {
	if en.Op == document.OpEqual {
		e.node(en.Value)
		return
	}
	e.open('{')
	e.item(0)
	e.key(en.Op.Name())
	e.node(en.Value)
	e.close('}')
}

func (e *encoder) node(n document.Node) {
	switch v := n.(type) {
	case document.Scalar:
		e.scalar(v)
	case *document.Object:
		e.object(v, false)
	case *document.Array:
		if v.Header == "" {
			e.array(v)
			return
		}
		e.open('{')
		e.item(0)
		e.key(v.Header)
		e.array(v)
		e.close('}')
	default:
		e.w.WriteString("null")
	}
}

func (e *encoder) array(a *document.Array) {
	if e.opts.DuplicateKeys == KeyValuePairs {
		e.open('{')
		e.item(0)
		e.key("type")
		e.str("array")
		e.item(1)
		e.key("val")
		e.values(a)
		e.close('}')
		return
	}
	e.values(a)
}

func (e *encoder) values(a *document.Array) {
	if len(a.Values) == 0 {
		e.w.WriteString("[]")
		return
	}
	e.open('[')
	for i, v := range a.Values {
		e.item(i)
		e.node(v)
	}
	e.close(']')
}

func (e *encoder) keyName(k document.Scalar) string {
	if k.Kind == document.KindString {
		return e.decode(k.Text)
	}
	if k.Kind == document.KindDate && e.opts.DateHours {
		return k.Date.StringWithHour()
	}
	return k.Name()
}

func (e *encoder) scalar(s document.Scalar) {
	switch s.Kind {
	case document.KindString:
		if !s.Quoted {
			switch s.Text {
			case "yes":
				e.w.WriteString("true")
				return
			case "no":
				e.w.WriteString("false")
				return
			}
			if num, ok := Number(s.Text); ok {
				e.w.WriteString(num)
				return
			}
		}
		e.str(e.decode(s.Text))
	case document.KindBool:
		e.w.WriteString(strconv.FormatBool(s.Bool))
	case document.KindSigned, document.KindUnsigned, document.KindFloat:
		e.w.WriteString(s.Name())
	case document.KindDate:
		if e.opts.DateHours {
			e.str(s.Date.StringWithHour())
		} else {
			e.str(s.Date.String())
		}
	default:
		e.str(s.Name())
	}
}

func (e *encoder) decode(s string) string {
	if e.opts.Encoding != game.Windows1252 || isASCII(s) {
		return s
	}
	out, err := text.Decode([]byte(s), game.Windows1252)
	if err != nil {
		return s
	}
	return string(out)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Number reports whether an unquoted scalar is numeric and returns its JSON
// form. Dates such as 1444.11.11 and words such as inf are not numbers.
func Number(s string) (string, bool) {
	body := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if body == "" {
		return "", false
	}
	digits, dots := 0, 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return "", false
		}
	}
	if digits == 0 || dots > 1 {
		return "", false
	}
	if dots == 0 {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 64); err == nil {
			return strconv.FormatUint(n, 10), true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

const hexDigits = "0123456789abcdef"

// str writes s as a JSON string. Invalid UTF-8 becomes U+FFFD.
func (e *encoder) str(s string) {
	w := e.w
	w.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				w.WriteByte('\\')
				w.WriteByte(c)
			case c == '\n':
				w.WriteString(`\n`)
			case c == '\r':
				w.WriteString(`\r`)
			case c == '\t':
				w.WriteString(`\t`)
			case c < 0x20:
				w.WriteString(`\u00`)
				w.WriteByte(hexDigits[c>>4])
				w.WriteByte(hexDigits[c&0xf])
			default:
				w.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			w.WriteString("\ufffd")
		} else {
			w.WriteString(s[i : i+size])
		}
		i += size
	}
	w.WriteByte('"')
}
