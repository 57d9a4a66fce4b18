package expr

import (
	"fmt"
	"strings"

	"bidsevents/internal/events"
)

// Template is a parsed fmt("...") string template. Placeholders in braces
// substitute row column values: fmt("instruction_{condition}_{phase}").
type Template struct {
	src   string
	parts []templatePart
}

// templatePart is either a literal chunk (col == "") or a placeholder.
type templatePart struct {
	lit string
	col string
}

// IsTemplate reports whether a configured value should be treated as a
// template rather than a literal. Only the fmt(...) form is a template;
// everything else is taken verbatim.
func IsTemplate(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "fmt(")
}

// ParseTemplate parses the fmt("literal {col} ...") form. The argument must
// be a single quoted string; placeholders may use backticks for punctuated
// column names, e.g. {`Instruction.started`}.
func ParseTemplate(input string) (*Template, error) {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "fmt(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("template %q: expected fmt(\"...\")", truncate(input))
	}
	arg := strings.TrimSpace(s[len("fmt(") : len(s)-1])
	if len(arg) < 2 || (arg[0] != '"' && arg[0] != '\'') || arg[len(arg)-1] != arg[0] {
		return nil, fmt.Errorf("template %q: fmt argument must be a quoted string", truncate(input))
	}
	body := arg[1 : len(arg)-1]

	t := &Template{src: input}
	for len(body) > 0 {
		open := strings.IndexByte(body, '{')
		if open < 0 {
			t.parts = append(t.parts, templatePart{lit: body})
			break
		}
		if open > 0 {
			t.parts = append(t.parts, templatePart{lit: body[:open]})
		}
		closing := strings.IndexByte(body[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("template %q: unclosed placeholder", truncate(input))
		}
		col := strings.TrimSpace(body[open+1 : open+closing])
		col = strings.Trim(col, "`")
		if col == "" {
			return nil, fmt.Errorf("template %q: empty placeholder", truncate(input))
		}
		t.parts = append(t.parts, templatePart{col: col})
		body = body[open+closing+1:]
	}
	return t, nil
}

// Render substitutes row values into the template. A placeholder whose column
// is absent or null is unresolved: Render returns an error so the caller can
// log a diagnostic and fall back, rather than emitting a mangled label.
func (t *Template) Render(r events.Row) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.col == "" {
			b.WriteString(p.lit)
			continue
		}
		v := r.Get(p.col)
		if v.IsNull() {
			return "", fmt.Errorf("unresolved placeholder {%s} in %s", p.col, t.src)
		}
		b.WriteString(v.Display())
	}
	return b.String(), nil
}
