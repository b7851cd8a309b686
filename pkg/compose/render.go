package compose

import (
	"fmt"
	"strings"
)

// RenderContext carries the fixed set of flags and values a templated
// component file may condition on. Templates are rendered with a small
// conditional-substitution pass, not a general template language: the
// generator needs no loops and an enumerated flag set keeps typos loud.
type RenderContext struct {
	LocalhostDomain    bool
	Debug              bool
	HTTPS              bool
	ACMEStaging        bool
	ForceHTTPSRedirect bool

	Domain    string
	ACMEEmail string
}

func (rc RenderContext) flag(name string) (bool, bool) {
	switch name {
	case "LOCALHOST_DOMAIN":
		return rc.LocalhostDomain, true
	case "DEBUG":
		return rc.Debug, true
	case "HTTPS":
		return rc.HTTPS, true
	case "ACME_STAGING":
		return rc.ACMEStaging, true
	case "FORCE_HTTPS_REDIRECT":
		return rc.ForceHTTPSRedirect, true
	default:
		return false, false
	}
}

// directivePrefix marks render directives. A directive occupies a whole
// line: `#% if FLAG`, `#% else`, `#% end`. Nesting is allowed.
const directivePrefix = "#%"

// Render evaluates the conditional directives in a .tpl file against rc
// and substitutes the %{DOMAIN} and %{ACME_EMAIL} placeholders. Directive
// lines never appear in the output. Unknown flags and unbalanced
// directives are errors.
func Render(content string, rc RenderContext) (string, error) {
	// emit[i] tells whether lines at nesting depth i are kept; taken[i]
	// tells whether any branch of the conditional at depth i has fired,
	// so `else` knows what to do.
	emit := []bool{true}
	taken := []bool{true}

	lines := strings.Split(content, "\n")
	trailingNewline := strings.HasSuffix(content, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	var out strings.Builder
	for lineno, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, directivePrefix) {
			if emit[len(emit)-1] {
				out.WriteString(substitute(line, rc))
				out.WriteString("\n")
			}
			continue
		}

		directive := strings.TrimSpace(strings.TrimPrefix(trimmed, directivePrefix))
		switch {
		case strings.HasPrefix(directive, "if "):
			name := strings.TrimSpace(strings.TrimPrefix(directive, "if "))
			negate := false
			if rest, ok := strings.CutPrefix(name, "not "); ok {
				negate = true
				name = strings.TrimSpace(rest)
			}
			val, known := rc.flag(name)
			if !known {
				return "", fmt.Errorf("line %d: unknown render flag %q", lineno+1, name)
			}
			if negate {
				val = !val
			}
			active := emit[len(emit)-1] && val
			emit = append(emit, active)
			taken = append(taken, active)
		case directive == "else":
			if len(emit) == 1 {
				return "", fmt.Errorf("line %d: else without if", lineno+1)
			}
			parent := emit[len(emit)-2]
			emit[len(emit)-1] = parent && !taken[len(taken)-1]
			taken[len(taken)-1] = taken[len(taken)-1] || emit[len(emit)-1]
		case directive == "end":
			if len(emit) == 1 {
				return "", fmt.Errorf("line %d: end without if", lineno+1)
			}
			emit = emit[:len(emit)-1]
			taken = taken[:len(taken)-1]
		default:
			return "", fmt.Errorf("line %d: unknown directive %q", lineno+1, directive)
		}
	}

	if len(emit) != 1 {
		return "", fmt.Errorf("unbalanced render directives: %d unterminated if", len(emit)-1)
	}

	rendered := out.String()
	if !trailingNewline {
		rendered = strings.TrimSuffix(rendered, "\n")
	}
	return rendered, nil
}

func substitute(line string, rc RenderContext) string {
	line = strings.ReplaceAll(line, "%{DOMAIN}", rc.Domain)
	line = strings.ReplaceAll(line, "%{ACME_EMAIL}", rc.ACMEEmail)
	return line
}
