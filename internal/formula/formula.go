// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formula parses and evaluates scoring formulas over named numeric
// columns. The language is deliberately small: literals, field identifiers,
// the arithmetic operators + - * / **, unary minus, parentheses, and a fixed
// allow-list of functions (log10, sqrt). It is not a general-purpose
// evaluator; formulas cannot call into anything outside the allow-list.
package formula

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnknownIdentifier reports a formula referencing a name that is neither a
// column nor an injected constant. Callers treat it as a configuration error.
var ErrUnknownIdentifier = errors.New("unknown identifier")

// functions is the allow-list of callable names.
var functions = map[string]func(float64) float64{
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
}

// Expr is a parsed formula ready for repeated evaluation.
type Expr struct {
	source string
	root   node
	idents map[string]struct{}
}

// Parse compiles a formula string. Syntax errors and calls to functions
// outside the allow-list are reported at parse time.
func Parse(source string) (*Expr, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, fmt.Errorf("parsing formula %q: %w", source, err)
	}
	p := &parser{toks: toks, idents: make(map[string]struct{})}
	root, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("parsing formula %q: %w", source, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("parsing formula %q: unexpected %q", source, p.toks[p.pos].text)
	}
	return &Expr{source: source, root: root, idents: p.idents}, nil
}

// String returns the original formula source.
func (e *Expr) String() string { return e.source }

// Identifiers returns the sorted set of field and constant names the formula
// references. Function names are not included.
func (e *Expr) Identifiers() []string {
	names := make([]string, 0, len(e.idents))
	for name := range e.idents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval computes one score per record. Each identifier resolves to a column of
// length n or to a constant broadcast across all records. An identifier found
// in neither returns ErrUnknownIdentifier. Eval never masks NaN or ±Inf
// results; callers decide how to treat non-finite scores.
func (e *Expr) Eval(columns map[string][]float64, consts map[string]float64, n int) ([]float64, error) {
	for name := range e.idents {
		if _, ok := columns[name]; ok {
			continue
		}
		if _, ok := consts[name]; ok {
			continue
		}
		return nil, fmt.Errorf("evaluating formula %q: %w %q", e.source, ErrUnknownIdentifier, name)
	}
	env := &env{columns: columns, consts: consts, n: n}
	return e.root.eval(env), nil
}

type env struct {
	columns map[string][]float64
	consts  map[string]float64
	n       int
}

// --- AST ---

type node interface {
	eval(*env) []float64
}

type literal struct{ value float64 }

func (l literal) eval(e *env) []float64 {
	out := make([]float64, e.n)
	for i := range out {
		out[i] = l.value
	}
	return out
}

type ident struct{ name string }

func (id ident) eval(e *env) []float64 {
	if col, ok := e.columns[id.name]; ok {
		return col
	}
	out := make([]float64, e.n)
	c := e.consts[id.name]
	for i := range out {
		out[i] = c
	}
	return out
}

type binary struct {
	op          byte // '+', '-', '*', '/', '^' (power)
	left, right node
}

func (b binary) eval(e *env) []float64 {
	l, r := b.left.eval(e), b.right.eval(e)
	out := make([]float64, e.n)
	for i := range out {
		switch b.op {
		case '+':
			out[i] = l[i] + r[i]
		case '-':
			out[i] = l[i] - r[i]
		case '*':
			out[i] = l[i] * r[i]
		case '/':
			out[i] = l[i] / r[i]
		case '^':
			out[i] = math.Pow(l[i], r[i])
		}
	}
	return out
}

type negate struct{ operand node }

func (u negate) eval(e *env) []float64 {
	v := u.operand.eval(e)
	out := make([]float64, e.n)
	for i := range out {
		out[i] = -v[i]
	}
	return out
}

type call struct {
	fn      func(float64) float64
	operand node
}

func (c call) eval(e *env) []float64 {
	v := c.operand.eval(e)
	out := make([]float64, e.n)
	for i := range out {
		out[i] = c.fn(v[i])
	}
	return out
}

// --- lexer ---

type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp     // + - * / ** ( )
)

type token struct {
	kind tokKind
	text string
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '*' && i+1 < len(s) && s[i+1] == '*':
			toks = append(toks, token{tokOp, "**"})
			i += 2
		case strings.ContainsRune("+-*/()", c):
			toks = append(toks, token{tokOp, string(c)})
			i++
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.' || s[j] == 'e' || s[j] == 'E' ||
				((s[j] == '+' || s[j] == '-') && j > i && (s[j-1] == 'e' || s[j-1] == 'E'))) {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("illegal character %q", c)
		}
	}
	return toks, nil
}

// --- parser ---
//
// expr  := term (('+' | '-') term)*
// term  := unary (('*' | '/') unary)*
// unary := '-' unary | power
// power := primary ('**' unary)?      right-associative
// primary := NUMBER | IDENT | IDENT '(' expr ')' | '(' expr ')'
//
// As in Python, '**' binds tighter than unary minus on its left, so
// -x ** 2 is -(x ** 2), while the exponent may itself be signed: x ** -2.

type parser struct {
	toks   []token
	pos    int
	idents map[string]struct{}
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) acceptOp(text string) bool {
	if t, ok := p.peek(); ok && t.kind == tokOp && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("+"):
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binary{op: '+', left: left, right: right}
		case p.acceptOp("-"):
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = binary{op: '-', left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("*"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binary{op: '*', left: left, right: right}
		case p.acceptOp("/"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binary{op: '/', left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.acceptOp("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate{operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.acceptOp("**") {
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binary{op: '^', left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of formula")
	}

	switch t.kind {
	case tokNumber:
		p.pos++
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return literal{value: v}, nil

	case tokIdent:
		p.pos++
		if p.acceptOp("(") {
			fn, ok := functions[t.text]
			if !ok {
				return nil, fmt.Errorf("function %q is not allowed (allowed: log10, sqrt)", t.text)
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, fmt.Errorf("missing ) after %s(", t.text)
			}
			return call{fn: fn, operand: arg}, nil
		}
		p.idents[t.text] = struct{}{}
		return ident{name: t.text}, nil

	case tokOp:
		if t.text == "(" {
			p.pos++
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, fmt.Errorf("missing )")
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}
