package text

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/game"
)

// ErrStop may be returned by a Walk callback to end the walk early.
var ErrStop = errors.New("text: stop")

var headers = map[string]bool{
	"rgb":    true,
	"hsv":    true,
	"hsv360": true,
	"hex":    true,
}

var bom = []byte("\xef\xbb\xbf")

// Decode converts data to UTF-8 and strips a byte order mark.
func Decode(data []byte, enc game.Encoding) ([]byte, error) {
	data = bytes.TrimPrefix(data, bom)
	if enc != game.Windows1252 {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrap(err, "text: decode windows-1252")
	}
	return out, nil
}

// Parse builds a tree from UTF-8 plaintext.
func Parse(data []byte) (*document.Object, error) {
	var events []document.Event
	err := Walk(data, func(ev document.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return document.Build(document.SliceSource(events...))
}

// Walk emits the events of data in document order. Containers are
// classified like the binary reader: a scalar followed by an operator opens
// an object, anything else an array, and key/value pairs inside an array
// form a hidden object. A stray '}' at the root is skipped.
func Walk(data []byte, fn func(document.Event) error) error {
	p := &parser{lex: newLexer(data), fn: fn}
	err := p.objectBody(true)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

type parser struct {
	lex *lexer
	fn  func(document.Event) error
}

func (p *parser) fail(t token, format string, args ...any) error {
	if t.kind == tokError {
		return &SyntaxError{Line: t.line, Col: t.col, Msg: t.text}
	}
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) emit(kind document.EventKind, t token) error {
	ev := document.Event{Kind: kind, Offset: t.offset}
	if t.kind == tokScalar {
		ev.Scalar = document.String(t.text, t.quoted)
	}
	return p.fn(ev)
}

func (p *parser) objectBody(root bool) error {
	for {
		t := p.lex.next()
		switch t.kind {
		case tokEOF:
			if root {
				return nil
			}
			return p.fail(t, "unexpected end of input, missing '}'")
		case tokClose:
			if root {
				continue
			}
			return p.fn(document.Event{Kind: document.EventClose, Offset: t.offset})
		case tokOpen:
			if p.lex.peek(0).kind == tokClose {
				p.lex.next()
				continue
			}
			return p.fail(t, "unexpected '{' in key position")
		case tokScalar:
			if err := p.entry(t); err != nil {
				return err
			}
		default:
			return p.fail(t, "unexpected %s in key position", t.describe())
		}
	}
}

// entry reads the operator and value following key.
func (p *parser) entry(key token) error {
	op := document.OpEqual
	switch nt := p.lex.peek(0); nt.kind {
	case tokOp:
		p.lex.next()
		op = nt.op
	case tokOpen:
	default:
		return p.fail(nt, "expected operator after %q, found %s", key.text, nt.describe())
	}
	if err := p.fn(document.Event{
		Kind:   document.EventKey,
		Scalar: document.String(key.text, key.quoted),
		Op:     op,
		Offset: key.offset,
	}); err != nil {
		return err
	}
	return p.value()
}

func (p *parser) value() error {
	t := p.lex.next()
	switch t.kind {
	case tokScalar:
		if !t.quoted && headers[t.text] && p.lex.peek(0).kind == tokOpen {
			p.lex.next()
			return p.container(t.text, t)
		}
		return p.emit(document.EventScalar, t)
	case tokOpen:
		return p.container("", t)
	}
	return p.fail(t, "expected value, found %s", t.describe())
}

// container is entered after '{'.
func (p *parser) container(header string, open token) error {
	first, second := p.lex.peek(0), p.lex.peek(1)
	isObject := first.kind == tokScalar &&
		(second.kind == tokOp || second.kind == tokOpen && !(headers[first.text] && !first.quoted))

	kind := document.EventOpenArray
	if isObject {
		kind = document.EventOpenObject
	}
	if err := p.fn(document.Event{Kind: kind, Header: header, Offset: open.offset}); err != nil {
		return err
	}
	if isObject {
		return p.objectBody(false)
	}
	return p.arrayBody()
}

func (p *parser) arrayBody() error {
	for {
		t := p.lex.peek(0)
		switch t.kind {
		case tokClose:
			p.lex.next()
			return p.fn(document.Event{Kind: document.EventClose, Offset: t.offset})
		case tokOpen:
			p.lex.next()
			if err := p.container("", t); err != nil {
				return err
			}
		case tokScalar:
			if p.lex.peek(1).kind == tokOp {
				if err := p.hidden(t); err != nil {
					return err
				}
				continue
			}
			if err := p.value(); err != nil {
				return err
			}
		case tokEOF:
			return p.fail(t, "unexpected end of input, missing '}'")
		default:
			p.lex.next()
			return p.fail(t, "unexpected %s in array", t.describe())
		}
	}
}

// hidden reads key/value pairs inside an array until a bare value or the
// array's closing brace.
func (p *parser) hidden(start token) error {
	if err := p.fn(document.Event{Kind: document.EventOpenHidden, Offset: start.offset}); err != nil {
		return err
	}
	for p.lex.peek(0).kind == tokScalar && p.lex.peek(1).kind == tokOp {
		if err := p.entry(p.lex.next()); err != nil {
			return err
		}
	}
	return p.fn(document.Event{Kind: document.EventClose, Offset: start.offset})
}
