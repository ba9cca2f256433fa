// Package melt writes documents in the plaintext save grammar: tab
// indented, quoted only where the binary said so, without a trailing
// newline.
package melt

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/game"
)

// UnknownPolicy decides what happens to tokens missing from the dictionary.
type UnknownPolicy uint8

// Unknown token policies.
const (
	UnknownError UnknownPolicy = iota
	UnknownStringify
)

// ParseUnknownPolicy accepts "error" and "stringify".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(s) {
	case "", "error":
		return UnknownError, nil
	case "stringify":
		return UnknownStringify, nil
	}
	return 0, eris.Errorf("melt: unknown key policy %q (want error or stringify)", s)
}

func (p UnknownPolicy) String() string {
	if p == UnknownStringify {
		return "stringify"
	}
	return "error"
}

// Options control melting.
type Options struct {
	// Retain keeps ironman fields, quoted keys and the exact float scale.
	Retain     bool
	UnknownKey UnknownPolicy
}

// UnknownTokenError is returned under UnknownError.
type UnknownTokenError struct {
	ID     uint16
	Offset int64
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token 0x%04x at offset %d", e.ID, e.Offset)
}

// Result reports what a conversion ran into.
type Result struct {
	// UnknownTokens lists distinct unresolved ids in ascending order.
	UnknownTokens []uint16
}

type frameKind uint8

const (
	frameObject frameKind = iota
	frameArray
	frameHidden
)

type frame struct {
	kind      frameKind
	depth     int
	n         int
	multiline bool
}

// Formatter streams events as plaintext. Format may be called repeatedly to
// append further sections to the same root object.
type Formatter struct {
	w       *bufio.Writer
	caps    *game.Capabilities
	opts    Options
	unknown map[uint16]struct{}

	stack    []frame
	pending  *document.Event
	skipNext bool
	skipping int
}

// NewFormatter writes to w.
func NewFormatter(w io.Writer, caps *game.Capabilities, opts Options) *Formatter {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Formatter{
		w:       bw,
		caps:    caps,
		opts:    opts,
		unknown: make(map[uint16]struct{}),
		stack:   []frame{{kind: frameObject}},
	}
}

// Entries is the number of root entries written so far.
func (f *Formatter) Entries() int { return f.stack[0].n }

// Result returns the unknown tokens seen so far.
func (f *Formatter) Result() *Result {
	ids := make([]uint16, 0, len(f.unknown))
	for id := range f.unknown {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &Result{UnknownTokens: ids}
}

// Format consumes src until io.EOF and flushes the output.
func (f *Formatter) Format(src document.Source) error {
	for {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := f.event(ev); err != nil {
			return err
		}
	}
	if len(f.stack) != 1 || f.pending != nil {
		return eris.New("melt: document ended inside a container")
	}
	return eris.Wrap(f.w.Flush(), "melt: flush output")
}

// FormatDocument melts a tree.
func FormatDocument(w io.Writer, doc *document.Object, caps *game.Capabilities, opts Options) (*Result, error) {
	f := NewFormatter(w, caps, opts)
	if err := f.Format(doc.Events()); err != nil {
		return nil, err
	}
	return f.Result(), nil
}

func (f *Formatter) event(ev document.Event) error {
	if f.skipping > 0 {
		switch ev.Kind {
		case document.EventOpenObject, document.EventOpenArray, document.EventOpenHidden:
			f.skipping++
		case document.EventClose:
			f.skipping--
		}
		return nil
	}

	switch ev.Kind {
	case document.EventKey:
		if !f.opts.Retain && f.caps != nil && f.caps.Omits(ev.Scalar.Name()) {
			f.skipNext = true
			return nil
		}
		if err := f.checkUnknown(ev); err != nil {
			return err
		}
		f.pending = &ev
	case document.EventScalar:
		if f.skipNext {
			f.skipNext = false
			return nil
		}
		if err := f.checkUnknown(ev); err != nil {
			return err
		}
		f.separate(false)
		f.writeKey()
		f.w.WriteString(f.scalar(ev.Scalar))
	case document.EventOpenObject, document.EventOpenArray:
		if f.skipNext {
			f.skipNext = false
			f.skipping = 1
			return nil
		}
		f.separate(true)
		f.writeKey()
		if ev.Header != "" {
			f.w.WriteString(ev.Header)
			f.w.WriteByte(' ')
		}
		f.w.WriteByte('{')
		kind := frameObject
		if ev.Kind == document.EventOpenArray {
			kind = frameArray
		}
		f.stack = append(f.stack, frame{kind: kind, depth: f.top().depth + 1})
	case document.EventOpenHidden:
		f.stack = append(f.stack, frame{kind: frameHidden, depth: f.top().depth})
	case document.EventClose:
		f.close()
	}
	return nil
}

func (f *Formatter) top() *frame { return &f.stack[len(f.stack)-1] }

func (f *Formatter) checkUnknown(ev document.Event) error {
	if ev.Scalar.Kind != document.KindUnknown {
		return nil
	}
	if f.opts.UnknownKey == UnknownError {
		return &UnknownTokenError{ID: ev.Scalar.Token, Offset: ev.Offset}
	}
	f.unknown[ev.Scalar.Token] = struct{}{}
	return nil
}

// separate writes whatever precedes the next item of the current frame.
func (f *Formatter) separate(container bool) {
	idx := len(f.stack) - 1
	if f.stack[idx].kind == frameHidden {
		idx--
	}
	fr := &f.stack[idx]
	if fr.kind == frameArray {
		if container && !fr.multiline && f.pending == nil {
			fr.multiline = true
		}
		if fr.multiline {
			f.newline(fr.depth)
		} else {
			f.w.WriteByte(' ')
		}
		fr.n++
		return
	}
	if idx > 0 || fr.n > 0 {
		f.newline(fr.depth)
	}
	fr.n++
}

func (f *Formatter) newline(depth int) {
	f.w.WriteByte('\n')
	for i := 0; i < depth; i++ {
		f.w.WriteByte('\t')
	}
}

func (f *Formatter) writeKey() {
	if f.pending == nil {
		return
	}
	f.w.WriteString(f.key(f.pending.Scalar))
	f.w.WriteString(f.pending.Op.String())
	f.pending = nil
}

func (f *Formatter) close() {
	fr := *f.top()
	f.stack = f.stack[:len(f.stack)-1]
	switch {
	case fr.kind == frameHidden:
	case fr.n == 0:
		f.w.WriteByte('}')
	case fr.kind == frameArray && !fr.multiline:
		f.w.WriteString(" }")
	default:
		f.newline(fr.depth - 1)
		f.w.WriteByte('}')
	}
}

func (f *Formatter) key(s document.Scalar) string {
	if s.Kind == document.KindString && s.Quoted && f.opts.Retain {
		return quote(s.Text)
	}
	if s.Kind == document.KindString {
		return s.Text
	}
	return f.scalar(s)
}

func (f *Formatter) scalar(s document.Scalar) string {
	switch s.Kind {
	case document.KindString:
		if s.Quoted {
			return quote(s.Text)
		}
		return s.Text
	case document.KindFloat:
		if f.opts.Retain {
			return s.Num.Fixed()
		}
		return s.Num.String()
	case document.KindDate:
		if f.caps != nil && f.caps.DateHours {
			return s.Date.StringWithHour()
		}
		return s.Date.String()
	}
	return s.Name()
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}
