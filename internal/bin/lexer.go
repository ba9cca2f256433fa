// Package bin reads the binary save format: a stream of little endian u16
// token ids, some followed by fixed or length prefixed payloads.
package bin

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rakaly/cli/internal/classify"
)

// Control token ids.
const (
	IDEqual    uint16 = 0x0001
	IDOpen     uint16 = 0x0003
	IDClose    uint16 = 0x0004
	IDI32      uint16 = 0x000c
	IDF32      uint16 = 0x000d
	IDBool     uint16 = 0x000e
	IDQuoted   uint16 = 0x000f
	IDU32      uint16 = 0x0014
	IDUnquoted uint16 = 0x0017
	IDF64      uint16 = 0x0167
	IDRGB      uint16 = 0x0243
	IDU64      uint16 = 0x029c
	IDI64      uint16 = 0x0317
)

// TokenKind is the structural role of a token.
type TokenKind uint8

// Token kinds.
const (
	TokScalar TokenKind = iota + 1
	TokEqual
	TokOpen
	TokClose
	TokRGB
)

// Token is one lexed token. Data is owned by the token.
type Token struct {
	Kind   TokenKind
	Tag    classify.Tag
	Data   []byte
	Offset int64
}

func (t Token) String() string {
	switch t.Kind {
	case TokEqual:
		return "'='"
	case TokOpen:
		return "'{'"
	case TokClose:
		return "'}'"
	case TokRGB:
		return "rgb"
	}
	return fmt.Sprintf("scalar(tag %d)", t.Tag)
}

// DecodeError reports malformed or truncated input at a byte offset.
type DecodeError struct {
	Offset int64
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Reason)
}

// Lexer splits a byte stream into tokens with bounded lookahead.
type Lexer struct {
	r      *bufio.Reader
	offset int64
	ahead  []Token
	err    error
}

// NewLexer wraps r. It buffers internally.
func NewLexer(r io.Reader) *Lexer {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &Lexer{r: br}
}

// Offset is the byte position after the last token read from the input.
func (l *Lexer) Offset() int64 { return l.offset }

// Next returns the next token, or io.EOF at a clean end of input.
func (l *Lexer) Next() (Token, error) {
	if len(l.ahead) > 0 {
		t := l.ahead[0]
		l.ahead = l.ahead[1:]
		return t, nil
	}
	return l.read()
}

// Peek returns the token i positions ahead without consuming it.
func (l *Lexer) Peek(i int) (Token, error) {
	for len(l.ahead) <= i {
		t, err := l.read()
		if err != nil {
			return Token{}, err
		}
		l.ahead = append(l.ahead, t)
	}
	return l.ahead[i], nil
}

func (l *Lexer) read() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	t, err := l.readToken()
	if err != nil {
		l.err = err
	}
	return t, err
}

func (l *Lexer) readToken() (Token, error) {
	start := l.offset
	var hdr [2]byte
	if _, err := io.ReadFull(l.r, hdr[:]); err != nil {
		if err == io.EOF {
			return Token{}, io.EOF
		}
		return Token{}, l.truncated(start, err, "token id")
	}
	l.offset += 2
	id := binary.LittleEndian.Uint16(hdr[:])

	switch id {
	case IDEqual:
		return Token{Kind: TokEqual, Offset: start}, nil
	case IDOpen:
		return Token{Kind: TokOpen, Offset: start}, nil
	case IDClose:
		return Token{Kind: TokClose, Offset: start}, nil
	case IDRGB:
		return Token{Kind: TokRGB, Offset: start}, nil
	case IDI32:
		return l.fixed(start, classify.TagI32, 4)
	case IDF32:
		return l.fixed(start, classify.TagF32, 4)
	case IDU32:
		return l.fixed(start, classify.TagU32, 4)
	case IDBool:
		return l.fixed(start, classify.TagBool, 1)
	case IDF64:
		return l.fixed(start, classify.TagF64, 8)
	case IDU64:
		return l.fixed(start, classify.TagU64, 8)
	case IDI64:
		return l.fixed(start, classify.TagI64, 8)
	case IDQuoted:
		return l.text(start, classify.TagQuoted)
	case IDUnquoted:
		return l.text(start, classify.TagUnquoted)
	}
	return Token{Kind: TokScalar, Tag: classify.TagToken, Data: []byte{hdr[0], hdr[1]}, Offset: start}, nil
}

func (l *Lexer) fixed(start int64, tag classify.Tag, n int) (Token, error) {
	data := make([]byte, n)
	if _, err := io.ReadFull(l.r, data); err != nil {
		return Token{}, l.truncated(start, err, "payload")
	}
	l.offset += int64(n)
	return Token{Kind: TokScalar, Tag: tag, Data: data, Offset: start}, nil
}

func (l *Lexer) text(start int64, tag classify.Tag) (Token, error) {
	var lb [2]byte
	if _, err := io.ReadFull(l.r, lb[:]); err != nil {
		return Token{}, l.truncated(start, err, "string length")
	}
	l.offset += 2
	data := make([]byte, binary.LittleEndian.Uint16(lb[:]))
	if _, err := io.ReadFull(l.r, data); err != nil {
		return Token{}, l.truncated(start, err, "string payload")
	}
	l.offset += int64(len(data))
	return Token{Kind: TokScalar, Tag: tag, Data: data, Offset: start}, nil
}

func (l *Lexer) truncated(start int64, err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &DecodeError{Offset: start, Reason: "truncated " + what}
	}
	return &DecodeError{Offset: start, Reason: err.Error()}
}
