package document

// Node is a Scalar, *Object or *Array.
type Node interface {
	node()
}

// Operator joins a key to its value.
type Operator uint8

// Operators. The zero value is plain assignment.
const (
	OpEqual Operator = iota
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpNotEqual
	OpExact
	OpExists
)

// String returns the operator as written in a save.
func (o Operator) String() string {
	switch o {
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpNotEqual:
		return "!="
	case OpExact:
		return "=="
	case OpExists:
		return "?="
	}
	return "="
}

// Name returns the identifier used when the operator is spelled out, as in
// JSON output.
func (o Operator) Name() string {
	switch o {
	case OpLess:
		return "LESS_THAN"
	case OpLessEqual:
		return "LESS_THAN_EQUAL"
	case OpGreater:
		return "GREATER_THAN"
	case OpGreaterEqual:
		return "GREATER_THAN_EQUAL"
	case OpNotEqual:
		return "NOT_EQUAL"
	case OpExact:
		return "EXACT"
	case OpExists:
		return "EXISTS"
	}
	return "EQUAL"
}

// Entry is one key/value pair of an Object.
type Entry struct {
	Key   Scalar
	Op    Operator
	Value Node
}

// Object is an ordered list of entries; keys may repeat. A hidden object
// lives inside an Array without braces of its own.
type Object struct {
	Entries []Entry
	Header  string
	Hidden  bool
}

func (*Object) node() {}

// Get returns the value of the first entry named key.
func (o *Object) Get(key string) (Node, bool) {
	for _, e := range o.Entries {
		if e.Key.Name() == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Lookup follows a path of keys through nested objects.
func (o *Object) Lookup(path ...string) (Node, bool) {
	cur := o
	for i, key := range path {
		v, ok := cur.Get(key)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, ok := v.(*Object)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Array is an ordered list of nodes. Header is set for values written as
// `rgb { 1 2 3 }`.
type Array struct {
	Values []Node
	Header string
}

func (*Array) node() {}
