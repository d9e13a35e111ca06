package platform

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// CfgExpr is a parsed `cfg(...)` target expression as found on dependency
// edges, e.g. `cfg(all(target_os = "linux", not(target_env = "musl")))`.
// Expressions support all()/any()/not() combinators, key = "value"
// comparisons, and the bare `unix`/`windows` family predicates.
type CfgExpr struct {
	root cfgNode
	raw  string
}

// ParseCfg parses a cfg expression. The input must be wrapped in `cfg(...)`.
func ParseCfg(s string) (*CfgExpr, error) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(s), "cfg(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return nil, errors.New(errors.ErrCodeGraph, "invalid target expression %q: want cfg(...)", s)
	}
	p := &cfgParser{input: strings.TrimSuffix(inner, ")")}
	node, err := p.parsePredicate()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGraph, err, "invalid target expression %q", s)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, errors.New(errors.ErrCodeGraph, "invalid target expression %q: trailing input at offset %d", s, p.pos)
	}
	return &CfgExpr{root: node, raw: s}, nil
}

// String returns the expression as originally written.
func (e *CfgExpr) String() string { return e.raw }

// Eval evaluates the expression against a single concrete triple.
// Predicates outside the target_* namespace (e.g. feature flags,
// target_pointer_width) are not modeled here and evaluate to false.
func (e *CfgExpr) Eval(t Triple) bool {
	return e.root.eval(t)
}

type cfgNode interface {
	eval(t Triple) bool
}

type allNode struct{ children []cfgNode }

func (n allNode) eval(t Triple) bool {
	for _, c := range n.children {
		if !c.eval(t) {
			return false
		}
	}
	return true
}

type anyNode struct{ children []cfgNode }

func (n anyNode) eval(t Triple) bool {
	for _, c := range n.children {
		if c.eval(t) {
			return true
		}
	}
	return false
}

type notNode struct{ child cfgNode }

func (n notNode) eval(t Triple) bool { return !n.child.eval(t) }

// keyNode is a `key = "value"` comparison, or a bare flag when value is
// empty and bare is set.
type keyNode struct {
	key   string
	value string
	bare  bool
}

func (n keyNode) eval(t Triple) bool {
	if n.bare {
		switch n.key {
		case "unix":
			return t.TargetFamily() == "unix"
		case "windows":
			return t.TargetFamily() == "windows"
		default:
			return false
		}
	}
	switch n.key {
	case "target_os":
		return t.TargetOS() == n.value
	case "target_arch":
		return t.Arch == n.value
	case "target_env":
		return t.Env == n.value
	case "target_vendor":
		return t.Vendor == n.value
	case "target_family":
		return t.TargetFamily() == n.value
	default:
		return false
	}
}

// cfgParser is a hand-written recursive-descent parser over the predicate
// grammar inside cfg(...). The grammar is small and stable:
//
//	pred  := 'all' '(' list ')' | 'any' '(' list ')' | 'not' '(' pred ')'
//	       | ident | ident '=' string
//	list  := pred (',' pred)* [',']
type cfgParser struct {
	input string
	pos   int
}

func (p *cfgParser) parsePredicate() (cfgNode, error) {
	ident, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	p.skipSpace()

	switch ident {
	case "all", "any":
		children, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if ident == "all" {
			return allNode{children: children}, nil
		}
		return anyNode{children: children}, nil
	case "not":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		child, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}

	if p.peek() == '=' {
		p.pos++
		p.skipSpace()
		value, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return keyNode{key: ident, value: value}, nil
	}
	return keyNode{key: ident, bare: true}, nil
}

func (p *cfgParser) parseList() ([]cfgNode, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var children []cfgNode
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return children, nil
		}
		child, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
		}
	}
}

func (p *cfgParser) parseIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at offset %d", start)
	}
	return p.input[start:p.pos], nil
}

func (p *cfgParser) parseString() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '"' {
		p.pos++
	}
	if p.pos == len(p.input) {
		return "", fmt.Errorf("unterminated string at offset %d", start)
	}
	s := p.input[start:p.pos]
	p.pos++
	return s, nil
}

func (p *cfgParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *cfgParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *cfgParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}
