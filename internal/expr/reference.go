package expr

import (
	"fmt"
	"strconv"

	"bidsevents/internal/events"
)

// Reference is a parsed group reference expression such as "first.onset-10":
// a sum of numeric literals and first.<col> terms, evaluated against the rows
// of one group in their current table order. Row synthesis uses it to compute
// onsets for generated rows.
type Reference struct {
	src   string
	terms []refTerm
}

// refTerm is one signed addend: either a literal (col == "") or first.<col>.
type refTerm struct {
	sign float64
	col  string
	lit  float64
}

// ParseReference parses a reference expression. Unlike predicates, malformed
// reference expressions are a runtime concern: synthesis catches the error,
// logs it, and skips the affected group instead of failing the pipeline.
func ParseReference(input string) (*Reference, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, input: input}
	ref := &Reference{src: input}

	sign := 1.0
	if p.cur().Type == MINUS {
		sign = -1
		p.next()
	} else if p.cur().Type == PLUS {
		p.next()
	}
	for {
		term, err := p.parseRefTerm(sign)
		if err != nil {
			return nil, err
		}
		ref.terms = append(ref.terms, term)

		switch tok := p.next(); tok.Type {
		case PLUS:
			sign = 1
		case MINUS:
			sign = -1
		case EOF:
			return ref, nil
		default:
			return nil, p.errf("expected + or -, got %q", tok.Literal)
		}
	}
}

func (p *parser) parseRefTerm(sign float64) (refTerm, error) {
	switch tok := p.next(); tok.Type {
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return refTerm{}, p.errf("bad number %q", tok.Literal)
		}
		return refTerm{sign: sign, lit: f}, nil
	case IDENT:
		if tok.Literal != "first" {
			return refTerm{}, p.errf("unsupported reference %q (only first.<col> is available)", tok.Literal)
		}
		if p.next().Type != DOT {
			return refTerm{}, p.errf("expected . after first")
		}
		colTok := p.next()
		if colTok.Type != IDENT {
			return refTerm{}, p.errf("expected column name after first., got %q", colTok.Literal)
		}
		return refTerm{sign: sign, col: colTok.Literal}, nil
	default:
		return refTerm{}, p.errf("expected number or first.<col>, got %q", tok.Literal)
	}
}

// Eval computes the reference over group, where group is non-empty and
// ordered as the table currently is. first.<col> reads the first row; a null
// or non-numeric value there is an evaluation error, reported per group.
func (ref *Reference) Eval(group []events.Row) (float64, error) {
	if len(group) == 0 {
		return 0, fmt.Errorf("%s: empty group", ref.src)
	}
	var sum float64
	for _, t := range ref.terms {
		if t.col == "" {
			sum += t.sign * t.lit
			continue
		}
		v := group[0].Get(t.col)
		n, ok := v.Num()
		if !ok {
			return 0, fmt.Errorf("%s: first.%s is not numeric (got %s)", ref.src, t.col, v.Display())
		}
		sum += t.sign * n
	}
	return sum, nil
}
