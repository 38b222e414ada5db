package droid

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Matcher decides whether a message text triggers a listener and extracts
// its parameters.
//
// Patterns are matched against the whole trimmed text, case-insensitively.
// ":name" captures one word, ":name(regex)" captures regex, runs of
// whitespace match any whitespace and everything else is literal. Aliases
// are literal alternatives without parameters. A Matcher with neither
// patterns nor aliases matches every text.
type Matcher struct {
	patterns []*regexp.Regexp
	aliases  []string
}

// NewMatcher compiles patterns and aliases.
func NewMatcher(patterns, aliases []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			m.aliases = append(m.aliases, a)
		}
	}
	return m, nil
}

// Match reports whether text matches and returns the captured parameters.
func (m *Matcher) Match(text string) (map[string]string, bool) {
	text = strings.TrimSpace(text)
	if len(m.patterns) == 0 && len(m.aliases) == 0 {
		return map[string]string{}, true
	}
	for _, re := range m.patterns {
		sub := re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		params := make(map[string]string)
		for i, name := range re.SubexpNames() {
			if name != "" {
				params[name] = sub[i]
			}
		}
		return params, true
	}
	for _, a := range m.aliases {
		if strings.EqualFold(a, text) {
			return map[string]string{}, true
		}
	}
	return nil, false
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?is)^`)

	src := []rune(strings.TrimSpace(pattern))
	for i := 0; i < len(src); {
		r := src[i]
		switch {
		case unicode.IsSpace(r):
			for i < len(src) && unicode.IsSpace(src[i]) {
				i++
			}
			b.WriteString(`\s+`)

		case r == ':' && i+1 < len(src) && isIdentStart(src[i+1]):
			j := i + 1
			for j < len(src) && isIdent(src[j]) {
				j++
			}
			name := string(src[i+1 : j])
			expr := `\S+`
			if j < len(src) && src[j] == '(' {
				end, err := closingParen(src, j)
				if err != nil {
					return nil, err
				}
				expr = string(src[j+1 : end])
				j = end + 1
			}
			fmt.Fprintf(&b, `(?P<%s>%s)`, name, expr)
			i = j

		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
			i++
		}
	}

	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

func closingParen(src []rune, open int) (int, error) {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parenthesis at offset %d", open)
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdent(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }
