package document

import (
	"io"

	"github.com/rotisserie/eris"
)

// EventKind tags a structural event.
type EventKind uint8

// Event kinds.
const (
	// EventKey starts an object entry; Scalar holds the key and Op the
	// operator. The value event follows.
	EventKey EventKind = iota + 1
	// EventScalar is a value: an entry value or an array element.
	EventScalar
	EventOpenObject
	EventOpenArray
	// EventOpenHidden starts an object embedded in an array without
	// braces. It is closed with its own EventClose before the array's.
	EventOpenHidden
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventKey:
		return "key"
	case EventScalar:
		return "scalar"
	case EventOpenObject:
		return "open-object"
	case EventOpenArray:
		return "open-array"
	case EventOpenHidden:
		return "open-hidden"
	case EventClose:
		return "close"
	}
	return "invalid"
}

// Event is one step of a depth first walk over a document.
type Event struct {
	Kind   EventKind
	Scalar Scalar
	Op     Operator
	Header string
	Offset int64
}

// Source produces events in document order and returns io.EOF after the
// last one.
type Source interface {
	Next() (Event, error)
}

type frame struct {
	obj     *Object
	arr     *Array
	pending *Entry
}

// Build assembles a source into a tree. The root is an implicit object.
func Build(src Source) (*Object, error) {
	root := &Object{}
	stack := []*frame{{obj: root}}

	attach := func(top *frame, n Node, offset int64) error {
		switch {
		case top.arr != nil:
			top.arr.Values = append(top.arr.Values, n)
		case top.pending != nil:
			top.pending.Value = n
			top.obj.Entries = append(top.obj.Entries, *top.pending)
			top.pending = nil
		default:
			return eris.Errorf("document: value without key at offset %d", offset)
		}
		return nil
	}

	for {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]

		switch ev.Kind {
		case EventKey:
			if top.obj == nil || top.pending != nil {
				return nil, eris.Errorf("document: unexpected key at offset %d", ev.Offset)
			}
			top.pending = &Entry{Key: ev.Scalar, Op: ev.Op}
		case EventScalar:
			if err := attach(top, ev.Scalar, ev.Offset); err != nil {
				return nil, err
			}
		case EventOpenObject:
			o := &Object{Header: ev.Header}
			if err := attach(top, o, ev.Offset); err != nil {
				return nil, err
			}
			stack = append(stack, &frame{obj: o})
		case EventOpenArray:
			a := &Array{Header: ev.Header}
			if err := attach(top, a, ev.Offset); err != nil {
				return nil, err
			}
			stack = append(stack, &frame{arr: a})
		case EventOpenHidden:
			if top.arr == nil {
				return nil, eris.Errorf("document: hidden object outside array at offset %d", ev.Offset)
			}
			o := &Object{Hidden: true}
			top.arr.Values = append(top.arr.Values, o)
			stack = append(stack, &frame{obj: o})
		case EventClose:
			if len(stack) == 1 {
				return nil, eris.Errorf("document: unbalanced close at offset %d", ev.Offset)
			}
			if top.pending != nil {
				return nil, eris.Errorf("document: key without value at offset %d", ev.Offset)
			}
			stack = stack[:len(stack)-1]
		default:
			return nil, eris.Errorf("document: invalid event %d", ev.Kind)
		}
	}

	if len(stack) != 1 || stack[0].pending != nil {
		return nil, eris.New("document: unexpected end of events")
	}
	return root, nil
}

// Events replays the object as a Source, root entries first.
func (o *Object) Events() Source {
	r := &replay{}
	r.object(o)
	return r
}

type replay struct {
	events []Event
	pos    int
}

func (r *replay) Next() (Event, error) {
	if r.pos >= len(r.events) {
		return Event{}, io.EOF
	}
	ev := r.events[r.pos]
	r.pos++
	return ev, nil
}

func (r *replay) object(o *Object) {
	for _, e := range o.Entries {
		r.events = append(r.events, Event{Kind: EventKey, Scalar: e.Key, Op: e.Op})
		r.value(e.Value)
	}
}

func (r *replay) value(n Node) {
	switch v := n.(type) {
	case Scalar:
		r.events = append(r.events, Event{Kind: EventScalar, Scalar: v})
	case *Object:
		kind := EventOpenObject
		if v.Hidden {
			kind = EventOpenHidden
		}
		r.events = append(r.events, Event{Kind: kind, Header: v.Header})
		r.object(v)
		r.events = append(r.events, Event{Kind: EventClose})
	case *Array:
		r.events = append(r.events, Event{Kind: EventOpenArray, Header: v.Header})
		for _, x := range v.Values {
			r.value(x)
		}
		r.events = append(r.events, Event{Kind: EventClose})
	}
}

// SliceSource replays a fixed list of events.
func SliceSource(events ...Event) Source {
	return &replay{events: events}
}
