package watch

import (
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/bin"
	"github.com/rakaly/cli/internal/classify"
	"github.com/rakaly/cli/internal/document"
	"github.com/rakaly/cli/internal/envelope"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/text"
	"github.com/rakaly/cli/internal/tokens"
)

// ErrDateNotFound is returned when a save has no value at the date path.
var ErrDateNotFound = errors.New("watch: date not found")

// DateExtractor reads the in-game date of a save, decoding only as far as
// the date field.
type DateExtractor struct {
	Caps     *game.Capabilities
	Resolver tokens.Resolver
}

// Extract returns the date stored at the game's date path. The metadata
// section is searched before the gamestate.
func (x *DateExtractor) Extract(data []byte) (document.Date, error) {
	file, err := envelope.Parse(data)
	if err != nil {
		return document.Date{}, err
	}
	sections := make([]envelope.Section, 0, len(file.Body)+1)
	if file.Meta != nil {
		sections = append(sections, *file.Meta)
	}
	sections = append(sections, file.Body...)

	for _, sec := range sections {
		d, ok, err := x.section(file.Encoding, sec)
		if err != nil {
			return document.Date{}, eris.Wrapf(err, "watch: extract date from %s", sec.Name)
		}
		if ok {
			return d, nil
		}
	}
	return document.Date{}, ErrDateNotFound
}

func (x *DateExtractor) section(enc envelope.Encoding, sec envelope.Section) (document.Date, bool, error) {
	m := &pathMatcher{path: x.Caps.DatePath}

	if enc == envelope.Text {
		data, err := sec.ReadAll()
		if err != nil {
			return document.Date{}, false, err
		}
		err = text.Walk(data, func(ev document.Event) error {
			if m.feed(ev) {
				return text.ErrStop
			}
			return nil
		})
		if err != nil {
			return document.Date{}, false, err
		}
		return x.date(m)
	}

	rc, err := sec.Open()
	if err != nil {
		return document.Date{}, false, err
	}
	defer rc.Close() //nolint:errcheck
	dec := bin.NewDecoder(rc, classify.New(x.Caps, x.Resolver))
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return document.Date{}, false, nil
		}
		if err != nil {
			return document.Date{}, false, err
		}
		if m.feed(ev) {
			return x.date(m)
		}
	}
}

func (x *DateExtractor) date(m *pathMatcher) (document.Date, bool, error) {
	if !m.found {
		return document.Date{}, false, nil
	}
	s := m.value
	switch s.Kind {
	case document.KindDate:
		return s.Date, true, nil
	case document.KindString:
		d, err := document.ParseDate(s.Text)
		if err != nil {
			return document.Date{}, false, err
		}
		return d, true, nil
	case document.KindSigned:
		return document.DateFromRaw(s.Int), true, nil
	}
	return document.Date{}, false, eris.Errorf("watch: %s is not a date", s.Name())
}

// pathMatcher follows events until the scalar at path is seen.
type pathMatcher struct {
	path  []string
	stack []string
	key   *string
	value document.Scalar
	found bool
}

func (m *pathMatcher) feed(ev document.Event) bool {
	key := m.key
	m.key = nil
	switch ev.Kind {
	case document.EventKey:
		name := ev.Scalar.Name()
		m.key = &name
	case document.EventScalar:
		if key != nil && m.matches(*key) {
			m.value = ev.Scalar
			m.found = true
		}
	case document.EventOpenObject, document.EventOpenArray, document.EventOpenHidden:
		seg := ""
		if key != nil {
			seg = *key
		}
		m.stack = append(m.stack, seg)
	case document.EventClose:
		if len(m.stack) > 0 {
			m.stack = m.stack[:len(m.stack)-1]
		}
	}
	return m.found
}

func (m *pathMatcher) matches(key string) bool {
	if len(m.stack)+1 != len(m.path) || m.path[len(m.path)-1] != key {
		return false
	}
	for i, seg := range m.stack {
		if m.path[i] != seg {
			return false
		}
	}
	return true
}
