// Package text parses the plaintext save grammar into document events.
package text

import (
	"fmt"

	"github.com/rakaly/cli/internal/document"
)

// SyntaxError locates malformed input. Line and Col are 1-based.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d col %d: %s", e.Line, e.Col, e.Msg)
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokOp
	tokScalar
	tokError
)

type token struct {
	kind   tokenKind
	op     document.Operator
	text   string
	quoted bool
	offset int64
	line   int
	col    int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokOpen:
		return "'{'"
	case tokClose:
		return "'}'"
	case tokOp:
		return fmt.Sprintf("operator %q", t.op.String())
	}
	return fmt.Sprintf("%q", t.text)
}

type lexer struct {
	data   []byte
	pos    int
	line   int
	col    int
	peeked []token
}

func newLexer(data []byte) *lexer {
	return &lexer{data: data, line: 1, col: 1}
}

func (l *lexer) next() token {
	if len(l.peeked) > 0 {
		t := l.peeked[0]
		l.peeked = l.peeked[1:]
		return t
	}
	return l.scan()
}

// peek returns the token i positions ahead without consuming it.
func (l *lexer) peek(i int) token {
	for len(l.peeked) <= i {
		l.peeked = append(l.peeked, l.scan())
	}
	return l.peeked[i]
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.data); i++ {
		if l.data[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) at(i int) byte {
	if l.pos+i < len(l.data) {
		return l.data[l.pos+i]
	}
	return 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		switch c := l.data[l.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';':
			l.advance(1)
		case c == '#':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) scan() token {
	l.skipSpace()
	t := token{offset: int64(l.pos), line: l.line, col: l.col}
	if l.pos >= len(l.data) {
		t.kind = tokEOF
		return t
	}

	c := l.data[l.pos]
	switch {
	case c == '{':
		l.advance(1)
		t.kind = tokOpen
	case c == '}':
		l.advance(1)
		t.kind = tokClose
	case c == '=':
		t.kind, t.op = tokOp, document.OpEqual
		if l.at(1) == '=' {
			t.op = document.OpExact
			l.advance(1)
		}
		l.advance(1)
	case c == '<' || c == '>':
		t.kind = tokOp
		eq := l.at(1) == '='
		switch {
		case c == '<' && eq:
			t.op = document.OpLessEqual
		case c == '<':
			t.op = document.OpLess
		case eq:
			t.op = document.OpGreaterEqual
		default:
			t.op = document.OpGreater
		}
		if eq {
			l.advance(1)
		}
		l.advance(1)
	case (c == '!' || c == '?') && l.at(1) == '=':
		t.kind, t.op = tokOp, document.OpNotEqual
		if c == '?' {
			t.op = document.OpExists
		}
		l.advance(2)
	case c == '"':
		return l.quoted(t)
	case c == '@' && l.at(1) == '[':
		return l.expression(t)
	default:
		start := l.pos
		for l.pos < len(l.data) && !l.delimiter() {
			l.advance(1)
		}
		if l.pos == start {
			l.advance(1)
		}
		t.kind = tokScalar
		t.text = string(l.data[start:l.pos])
	}
	return t
}

func (l *lexer) delimiter() bool {
	switch c := l.data[l.pos]; c {
	case ' ', '\t', '\r', '\n', ';', '{', '}', '=', '<', '>', '"', '#':
		return true
	case '!', '?':
		return l.at(1) == '='
	}
	return false
}

func (l *lexer) quoted(t token) token {
	l.advance(1)
	var buf []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '"':
			l.advance(1)
			t.kind = tokScalar
			t.text = string(buf)
			t.quoted = true
			return t
		case c == '\\' && (l.at(1) == '"' || l.at(1) == '\\'):
			buf = append(buf, l.at(1))
			l.advance(2)
		default:
			buf = append(buf, c)
			l.advance(1)
		}
	}
	t.kind = tokError
	t.text = "unterminated quoted string"
	return t
}

// expression reads @[ ... ] as one scalar; it may contain spaces.
func (l *lexer) expression(t token) token {
	start := l.pos
	depth := 0
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.advance(1)
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				t.kind = tokScalar
				t.text = string(l.data[start:l.pos])
				return t
			}
		}
	}
	t.kind = tokError
	t.text = "unterminated @[ expression"
	return t
}
