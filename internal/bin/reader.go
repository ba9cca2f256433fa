package bin

import (
	"io"

	"github.com/rakaly/cli/internal/document"
)

// RawEvent is a structural event carrying the unclassified token for keys
// and scalars.
type RawEvent struct {
	Kind   document.EventKind
	Token  Token
	Header string
	Offset int64
}

type frameKind uint8

const (
	frameObject frameKind = iota
	frameArray
	frameHidden
)

type frame struct {
	kind      frameKind
	wantValue bool
}

// Reader turns tokens into depth first structural events. Memory grows with
// nesting depth only.
type Reader struct {
	lex   *Lexer
	stack []frame
	queue []RawEvent
}

// NewReader reads events from r. The root is an implicit object.
func NewReader(r io.Reader) *Reader {
	return &Reader{lex: NewLexer(r), stack: []frame{{kind: frameObject}}}
}

// Offset is the current byte position in the input.
func (r *Reader) Offset() int64 { return r.lex.Offset() }

// Depth is the number of open containers.
func (r *Reader) Depth() int { return len(r.stack) - 1 }

// Next returns the next event, or io.EOF once the input ends at the root.
func (r *Reader) Next() (RawEvent, error) {
	if len(r.queue) > 0 {
		ev := r.queue[0]
		r.queue = r.queue[1:]
		return ev, nil
	}
	for {
		t, err := r.lex.Next()
		if err == io.EOF {
			if len(r.stack) > 1 || r.stack[0].wantValue {
				return RawEvent{}, &DecodeError{Offset: r.lex.Offset(), Reason: "unexpected end of input inside container"}
			}
			return RawEvent{}, io.EOF
		}
		if err != nil {
			return RawEvent{}, err
		}

		top := &r.stack[len(r.stack)-1]
		var (
			ev   RawEvent
			skip bool
		)
		switch {
		case top.kind == frameArray:
			ev, err = r.element(t)
		case top.wantValue:
			ev, err = r.value(t, top)
		default:
			ev, skip, err = r.key(t, top)
		}
		if err != nil {
			return RawEvent{}, err
		}
		if !skip {
			return ev, nil
		}
	}
}

func (r *Reader) key(t Token, top *frame) (RawEvent, bool, error) {
	switch t.Kind {
	case TokClose:
		if len(r.stack) == 1 {
			return RawEvent{}, false, &DecodeError{Offset: t.Offset, Reason: "unbalanced '}'"}
		}
		if top.kind == frameHidden {
			// The array's close also ends the hidden object.
			r.stack = r.stack[:len(r.stack)-2]
			r.queue = append(r.queue, RawEvent{Kind: document.EventClose, Offset: t.Offset})
			return RawEvent{Kind: document.EventClose, Offset: t.Offset}, false, nil
		}
		r.stack = r.stack[:len(r.stack)-1]
		return RawEvent{Kind: document.EventClose, Offset: t.Offset}, false, nil

	case TokScalar:
		next, err := r.lex.Peek(0)
		if err != nil {
			return RawEvent{}, false, r.eofInside(err)
		}
		switch {
		case next.Kind == TokEqual:
			_, _ = r.lex.Next()
		case top.kind == frameHidden:
			// A bare value after the hidden pairs belongs to the array.
			r.stack = r.stack[:len(r.stack)-1]
			r.queue = append(r.queue, RawEvent{Kind: document.EventScalar, Token: t, Offset: t.Offset})
			return RawEvent{Kind: document.EventClose, Offset: t.Offset}, false, nil
		case next.Kind == TokOpen, next.Kind == TokRGB:
		default:
			return RawEvent{}, false, &DecodeError{Offset: next.Offset, Reason: "expected '=' after key, found " + next.String()}
		}
		top.wantValue = true
		return RawEvent{Kind: document.EventKey, Token: t, Offset: t.Offset}, false, nil

	case TokOpen, TokRGB:
		if top.kind == frameHidden {
			// So does a nested container.
			r.stack = r.stack[:len(r.stack)-1]
			ev, err := r.element(t)
			if err != nil {
				return RawEvent{}, false, err
			}
			r.queue = append(r.queue, ev)
			return RawEvent{Kind: document.EventClose, Offset: t.Offset}, false, nil
		}
		if t.Kind == TokRGB {
			break
		}
		// Saves occasionally carry an empty `{}` where a key belongs.
		next, err := r.lex.Peek(0)
		if err != nil {
			return RawEvent{}, false, r.eofInside(err)
		}
		if next.Kind == TokClose {
			_, _ = r.lex.Next()
			return RawEvent{}, true, nil
		}
	}
	return RawEvent{}, false, &DecodeError{Offset: t.Offset, Reason: "unexpected " + t.String() + " where a key was expected"}
}

func (r *Reader) value(t Token, top *frame) (RawEvent, error) {
	switch t.Kind {
	case TokScalar:
		top.wantValue = false
		return RawEvent{Kind: document.EventScalar, Token: t, Offset: t.Offset}, nil
	case TokOpen:
		top.wantValue = false
		return r.open(t)
	case TokRGB:
		top.wantValue = false
		return r.header(t)
	}
	return RawEvent{}, &DecodeError{Offset: t.Offset, Reason: "expected a value, found " + t.String()}
}

func (r *Reader) element(t Token) (RawEvent, error) {
	switch t.Kind {
	case TokClose:
		r.stack = r.stack[:len(r.stack)-1]
		return RawEvent{Kind: document.EventClose, Offset: t.Offset}, nil
	case TokScalar:
		next, err := r.lex.Peek(0)
		if err != nil {
			return RawEvent{}, r.eofInside(err)
		}
		if next.Kind == TokEqual {
			_, _ = r.lex.Next()
			r.stack = append(r.stack, frame{kind: frameHidden, wantValue: true})
			r.queue = append(r.queue, RawEvent{Kind: document.EventKey, Token: t, Offset: t.Offset})
			return RawEvent{Kind: document.EventOpenHidden, Offset: t.Offset}, nil
		}
		return RawEvent{Kind: document.EventScalar, Token: t, Offset: t.Offset}, nil
	case TokOpen:
		return r.open(t)
	case TokRGB:
		return r.header(t)
	}
	return RawEvent{}, &DecodeError{Offset: t.Offset, Reason: "unexpected " + t.String() + " inside array"}
}

// open decides between object and array by looking at the first element.
func (r *Reader) open(t Token) (RawEvent, error) {
	first, err := r.lex.Peek(0)
	if err != nil {
		return RawEvent{}, r.eofInside(err)
	}
	kind := frameArray
	if first.Kind == TokScalar {
		second, err := r.lex.Peek(1)
		if err != nil {
			return RawEvent{}, r.eofInside(err)
		}
		switch second.Kind {
		case TokEqual, TokOpen, TokRGB:
			kind = frameObject
		}
	}
	r.stack = append(r.stack, frame{kind: kind})
	if kind == frameObject {
		return RawEvent{Kind: document.EventOpenObject, Offset: t.Offset}, nil
	}
	return RawEvent{Kind: document.EventOpenArray, Offset: t.Offset}, nil
}

func (r *Reader) header(t Token) (RawEvent, error) {
	next, err := r.lex.Next()
	if err != nil {
		return RawEvent{}, r.eofInside(err)
	}
	if next.Kind != TokOpen {
		return RawEvent{}, &DecodeError{Offset: next.Offset, Reason: "expected '{' after rgb"}
	}
	r.stack = append(r.stack, frame{kind: frameArray})
	return RawEvent{Kind: document.EventOpenArray, Header: "rgb", Offset: t.Offset}, nil
}

func (r *Reader) eofInside(err error) error {
	if err == io.EOF {
		return &DecodeError{Offset: r.lex.Offset(), Reason: "unexpected end of input inside container"}
	}
	return err
}
