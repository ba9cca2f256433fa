package interpolate

import (
	"fmt"
	"strconv"
	"strings"
)

type unknownVariable struct {
	name string
}

func (e *unknownVariable) Error() string {
	return fmt.Sprintf("unknown variable %q", e.name)
}

// Eval computes an arithmetic expression over numbers and variables with
// + - * /, unary minus and parentheses. Operators are left associative.
func Eval(expr string, vars map[string]float64) (float64, error) {
	p := &exprParser{src: strings.TrimSpace(expr), vars: vars}
	if p.src == "" {
		return 0, &Error{Msg: "empty expression"}
	}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	p.space()
	if p.pos < len(p.src) {
		return 0, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return v, nil
}

type exprParser struct {
	src  string
	pos  int
	vars map[string]float64
}

func (p *exprParser) errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf("malformed expression %q: %s", p.src, fmt.Sprintf(format, args...))}
}

func (p *exprParser) space() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.space()
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) sum() (float64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.product()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) product() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, &Error{Msg: fmt.Sprintf("division by zero in %q", p.src)}
		}
		left /= right
	}
}

func (p *exprParser) unary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.unary()
		return -v, err
	}
	return p.operand()
}

func (p *exprParser) operand() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, p.errorf("missing ')'")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, p.errorf("invalid number %q", p.src[start:p.pos])
		}
		return v, nil
	case c == '@' || c == '_' || isLetter(c):
		if c == '@' {
			p.pos++
		}
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] == '_' || isLetter(p.src[p.pos]) || p.src[p.pos] >= '0' && p.src[p.pos] <= '9') {
			p.pos++
		}
		name := p.src[start:p.pos]
		if name == "" {
			return 0, p.errorf("missing variable name")
		}
		v, ok := p.vars[name]
		if !ok {
			return 0, &unknownVariable{name: name}
		}
		return v, nil
	case c == 0:
		return 0, p.errorf("unexpected end")
	}
	return 0, p.errorf("unexpected %q", string(c))
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
