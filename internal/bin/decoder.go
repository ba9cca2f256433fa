package bin

import (
	"io"

	"github.com/rakaly/cli/internal/classify"
	"github.com/rakaly/cli/internal/document"
)

type scope struct {
	array bool
	key   string
}

// Decoder classifies the scalars of a Reader and yields document events.
// It implements document.Source.
type Decoder struct {
	r       *Reader
	cls     *classify.Classifier
	scopes  []scope
	lastKey string
}

// NewDecoder decodes the binary stream in r.
func NewDecoder(r io.Reader, cls *classify.Classifier) *Decoder {
	return &Decoder{r: NewReader(r), cls: cls, scopes: []scope{{}}}
}

// Offset is the current byte position in the input.
func (d *Decoder) Offset() int64 { return d.r.Offset() }

// Next implements document.Source.
func (d *Decoder) Next() (document.Event, error) {
	raw, err := d.r.Next()
	if err != nil {
		return document.Event{}, err
	}
	top := d.scopes[len(d.scopes)-1]
	ev := document.Event{Kind: raw.Kind, Header: raw.Header, Offset: raw.Offset}

	switch raw.Kind {
	case document.EventKey:
		ev.Scalar = d.cls.Classify(raw.Token.Tag, raw.Token.Data, "")
		d.lastKey = ev.Scalar.Name()
	case document.EventScalar:
		owner := d.lastKey
		if top.array {
			owner = top.key
		}
		ev.Scalar = d.cls.Classify(raw.Token.Tag, raw.Token.Data, owner)
	case document.EventOpenObject, document.EventOpenArray:
		key := d.lastKey
		if top.array {
			key = top.key
		}
		d.scopes = append(d.scopes, scope{array: raw.Kind == document.EventOpenArray, key: key})
	case document.EventOpenHidden:
		d.scopes = append(d.scopes, scope{key: top.key})
	case document.EventClose:
		d.scopes = d.scopes[:len(d.scopes)-1]
	}
	return ev, nil
}
