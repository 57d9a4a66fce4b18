package expr

import (
	"fmt"
	"strconv"

	"bidsevents/internal/events"
)

// Predicate is a parsed boolean row expression. Evaluation is side-effect
// free and total: a predicate over a row always returns true or false, never
// an error. Comparisons against null (or an absent column) are false, which
// is the documented fallback for selectors referencing columns that do not
// exist on a given row.
type Predicate interface {
	Eval(r events.Row) bool
	String() string
}

// compareExpr is `col OP literal` where OP is one of == != < <= > >=.
type compareExpr struct {
	col string
	op  TokenType
	lit events.Value
}

func (c *compareExpr) Eval(r events.Row) bool {
	v := r.Get(c.col)
	if v.IsNull() {
		return false
	}
	switch c.op {
	case EQ:
		return v.Equal(c.lit)
	case NEQ:
		return !v.Equal(c.lit)
	}
	// Ordering comparisons require matching kinds; mismatches are false.
	if ls, ok := c.lit.Str(); ok {
		vs, ok := v.Str()
		if !ok {
			return false
		}
		return ordered(c.op, compareStrings(vs, ls))
	}
	ln, _ := c.lit.Num()
	vn, ok := v.Num()
	if !ok {
		return false
	}
	switch {
	case vn < ln:
		return ordered(c.op, -1)
	case vn > ln:
		return ordered(c.op, +1)
	default:
		return ordered(c.op, 0)
	}
}

func (c *compareExpr) String() string {
	return fmt.Sprintf("%s %s %s", c.col, opLiteral(c.op), c.lit.Display())
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return +1
	default:
		return 0
	}
}

func ordered(op TokenType, cmp int) bool {
	switch op {
	case LT:
		return cmp < 0
	case LTE:
		return cmp <= 0
	case GT:
		return cmp > 0
	case GTE:
		return cmp >= 0
	}
	return false
}

func opLiteral(op TokenType) string {
	switch op {
	case EQ:
		return "=="
	case NEQ:
		return "!="
	case LT:
		return "<"
	case LTE:
		return "<="
	case GT:
		return ">"
	case GTE:
		return ">="
	}
	return "?"
}

// inExpr is `col in [lit, lit, ...]`.
type inExpr struct {
	col  string
	lits []events.Value
}

func (e *inExpr) Eval(r events.Row) bool {
	v := r.Get(e.col)
	if v.IsNull() {
		return false
	}
	for _, lit := range e.lits {
		if v.Equal(lit) {
			return true
		}
	}
	return false
}

func (e *inExpr) String() string { return fmt.Sprintf("%s in [...]", e.col) }

// nullTest is `col.isna()` (wantNull=true) or `col.notna()` (wantNull=false).
type nullTest struct {
	col      string
	wantNull bool
}

func (e *nullTest) Eval(r events.Row) bool {
	if e.wantNull {
		return r.Get(e.col).IsNull()
	}
	return !r.Get(e.col).IsNull()
}

func (e *nullTest) String() string {
	if e.wantNull {
		return e.col + ".isna()"
	}
	return e.col + ".notna()"
}

// boolExpr combines two predicates with & or |. `&` binds tighter than `|`.
type boolExpr struct {
	op    TokenType // AND or OR
	left  Predicate
	right Predicate
}

func (e *boolExpr) Eval(r events.Row) bool {
	if e.op == AND {
		return e.left.Eval(r) && e.right.Eval(r)
	}
	return e.left.Eval(r) || e.right.Eval(r)
}

func (e *boolExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left, opToken(e.op), e.right)
}

func opToken(op TokenType) string {
	if op == AND {
		return "&"
	}
	return "|"
}

// ParsePredicate parses a predicate expression. Syntax errors are reported at
// compile time; they never surface during row evaluation.
func ParsePredicate(input string) (Predicate, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, input: input}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != EOF {
		return nil, p.errf("unexpected trailing input starting at %q", p.cur().Literal)
	}
	return pred, nil
}

// parser is a minimal recursive-descent parser over the token stream.
type parser struct {
	tokens []Token
	pos    int
	input  string
}

func (p *parser) cur() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("parse %q: %s", truncate(p.input), fmt.Sprintf(format, args...))
}

// parseOr := parseAnd ('|' parseAnd)*
func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == OR {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: OR, left: left, right: right}
	}
	return left, nil
}

// parseAnd := parseUnary ('&' parseUnary)*
func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == AND {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: AND, left: left, right: right}
	}
	return left, nil
}

// parseUnary := '(' parseOr ')' | test
func (p *parser) parseUnary() (Predicate, error) {
	if p.cur().Type == LPAREN {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Type != RPAREN {
			return nil, p.errf("missing closing parenthesis")
		}
		p.next()
		return inner, nil
	}
	return p.parseTest()
}

// parseTest := col (op literal | 'in' '[' literals ']' | '.' isna/notna '(' ')')
func (p *parser) parseTest() (Predicate, error) {
	if p.cur().Type != IDENT {
		return nil, p.errf("expected column name, got %q", p.cur().Literal)
	}
	col := p.next().Literal

	switch tok := p.cur(); tok.Type {
	case EQ, NEQ, LT, LTE, GT, GTE:
		p.next()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &compareExpr{col: col, op: tok.Type, lit: lit}, nil

	case IDENT:
		if tok.Literal != "in" {
			return nil, p.errf("expected operator after column %q, got %q", col, tok.Literal)
		}
		p.next()
		lits, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &inExpr{col: col, lits: lits}, nil

	case DOT:
		p.next()
		method := p.next()
		if method.Type != IDENT || (method.Literal != "isna" && method.Literal != "notna") {
			return nil, p.errf("unknown method %q on column %q (want isna or notna)", method.Literal, col)
		}
		if p.next().Type != LPAREN {
			return nil, p.errf("expected () after .%s", method.Literal)
		}
		if p.next().Type != RPAREN {
			return nil, p.errf("expected () after .%s", method.Literal)
		}
		return &nullTest{col: col, wantNull: method.Literal == "isna"}, nil

	default:
		return nil, p.errf("expected operator after column %q, got %q", col, tok.Literal)
	}
}

func (p *parser) parseLiteral() (events.Value, error) {
	neg := false
	if p.cur().Type == MINUS {
		neg = true
		p.next()
	}
	tok := p.next()
	switch tok.Type {
	case STRING:
		if neg {
			return events.Null(), p.errf("cannot negate string literal %q", tok.Literal)
		}
		return events.String(tok.Literal), nil
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return events.Null(), p.errf("bad number %q", tok.Literal)
		}
		if neg {
			f = -f
		}
		return events.Number(f), nil
	default:
		return events.Null(), p.errf("expected literal, got %q", tok.Literal)
	}
}

func (p *parser) parseLiteralList() ([]events.Value, error) {
	if p.next().Type != LBRACKET {
		return nil, p.errf("expected [ after in")
	}
	var lits []events.Value
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
		switch tok := p.next(); tok.Type {
		case COMMA:
			continue
		case RBRACKET:
			return lits, nil
		default:
			return nil, p.errf("expected , or ] in list, got %q", tok.Literal)
		}
	}
}
