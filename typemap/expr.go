package typemap

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed declared type. The set of shapes is closed: Name,
// Generic, Quoted, Lit and Pipe.
type Expr interface {
	// Pos is the zero-based byte offset of the expression in its source.
	Pos() int
	String() string
	expr()
}

// Name is a bare identifier such as str or datetime.
type Name struct {
	Ident string
	At    int
}

// Generic is an identifier applied to bracketed arguments, List[int].
type Generic struct {
	Ident string
	Args  []Expr
	At    int
}

// Quoted is a quoted string. Outside Literal[...] it is a forward reference.
type Quoted struct {
	Text string
	At   int
}

// Lit is a numeric or boolean literal, only meaningful inside Literal[...].
type Lit struct {
	Value any
	At    int
}

// Pipe is a PEP 604 style union, int | None.
type Pipe struct {
	Alts []Expr
	At   int
}

func (n *Name) Pos() int    { return n.At }
func (g *Generic) Pos() int { return g.At }
func (q *Quoted) Pos() int  { return q.At }
func (l *Lit) Pos() int     { return l.At }
func (p *Pipe) Pos() int    { return p.At }

func (*Name) expr()    {}
func (*Generic) expr() {}
func (*Quoted) expr()  {}
func (*Lit) expr()     {}
func (*Pipe) expr()    {}

func (n *Name) String() string { return n.Ident }

func (g *Generic) String() string {
	args := make([]string, len(g.Args))
	for i, a := range g.Args {
		args[i] = a.String()
	}
	return g.Ident + "[" + strings.Join(args, ", ") + "]"
}

func (q *Quoted) String() string { return strconv.Quote(q.Text) }

func (l *Lit) String() string { return fmt.Sprint(l.Value) }

func (p *Pipe) String() string {
	alts := make([]string, len(p.Alts))
	for i, a := range p.Alts {
		alts[i] = a.String()
	}
	return strings.Join(alts, " | ")
}

// SyntaxError reports a declared type that does not fit the grammar.
type SyntaxError struct {
	Source string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid type %q at column %d: %s", e.Source, e.Offset+1, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLBrack
	tokRBrack
	tokComma
	tokPipe
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '[':
			toks = append(toks, token{tokLBrack, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBrack, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '|':
			toks = append(toks, token{tokPipe, "|", i})
			i++
		case c == '"' || c == '\'':
			start := i
			i++
			for i < len(src) && rune(src[i]) != c {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(src) {
				return nil, &SyntaxError{Source: src, Offset: start, Msg: "unterminated string"}
			}
			i++
			raw := src[start:i]
			if c == '\'' {
				raw = `"` + strings.ReplaceAll(raw[1:len(raw)-1], `"`, `\"`) + `"`
			}
			text, err := strconv.Unquote(raw)
			if err != nil {
				return nil, &SyntaxError{Source: src, Offset: start, Msg: "malformed string"}
			}
			toks = append(toks, token{tokString, text, start})
		case c == '-' || unicode.IsDigit(c):
			start := i
			i++
			for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || src[i] == '.' || unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		default:
			return nil, &SyntaxError{Source: src, Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

type exprParser struct {
	src  string
	toks []token
	i    int
}

// Parse parses a declared type such as Optional[List[str]].
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{src: src, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Source: src, Offset: 0, Msg: "empty type"}
	}
	e, err := p.union()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Source: p.src, Offset: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) union() (Expr, error) {
	first, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPipe {
		return first, nil
	}
	pipe := &Pipe{Alts: []Expr{first}, At: first.Pos()}
	for p.peek().kind == tokPipe {
		p.next()
		alt, err := p.primary()
		if err != nil {
			return nil, err
		}
		pipe.Alts = append(pipe.Alts, alt)
	}
	return pipe, nil
}

func (p *exprParser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return &Quoted{Text: t.text, At: t.pos}, nil
	case tokNumber:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return &Lit{Value: n, At: t.pos}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "malformed number %q", t.text)
		}
		return &Lit{Value: f, At: t.pos}, nil
	case tokIdent:
		switch t.text {
		case "True", "true":
			return &Lit{Value: true, At: t.pos}, nil
		case "False", "false":
			return &Lit{Value: false, At: t.pos}, nil
		}
		if p.peek().kind != tokLBrack {
			return &Name{Ident: t.text, At: t.pos}, nil
		}
		p.next()
		g := &Generic{Ident: t.text, At: t.pos}
		if p.peek().kind == tokRBrack {
			return nil, p.errorf(p.peek(), "%s[] needs at least one argument", t.text)
		}
		for {
			arg, err := p.union()
			if err != nil {
				return nil, err
			}
			g.Args = append(g.Args, arg)
			sep := p.next()
			if sep.kind == tokRBrack {
				return g, nil
			}
			if sep.kind != tokComma {
				return nil, p.errorf(sep, "expected ',' or ']' in %s[...]", t.text)
			}
		}
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of type")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}
