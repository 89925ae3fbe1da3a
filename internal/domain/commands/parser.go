package commands

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	keyPattern  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):(.*)$`)
)

// Parser turns "/name key: value key: value" lines into Commands.
type Parser struct {
	prefix string
	specs  map[string]Spec
}

// NewParser builds a parser for the given prefix. Specs are used only to
// canonicalise argument keys; commands without a spec still parse.
func NewParser(prefix string, specs ...Spec) *Parser {
	if prefix == "" {
		prefix = "/"
	}
	p := &Parser{prefix: prefix, specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		p.specs[strings.ToLower(s.Name)] = s
	}
	return p
}

func (p *Parser) Prefix() string { return p.prefix }

type token struct {
	text       string
	start, end int
}

// argKey is a key found in the argument tokens; the value begins at valueStart.
type argKey struct {
	name              string
	start, valueStart int
}

// Parse never panics; every malformed line becomes a *ParseFailure.
func (p *Parser) Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, failf("empty command")
	}
	if !strings.HasPrefix(line, p.prefix) {
		return Command{}, failf("commands start with %q", p.prefix)
	}

	rest := line[len(p.prefix):]
	toks := tokenize(rest)
	if len(toks) == 0 || toks[0].start != 0 {
		return Command{}, failf("missing command name after %q", p.prefix)
	}
	name := toks[0].text
	if !namePattern.MatchString(name) {
		return Command{}, failf("invalid command name %q", name)
	}
	name = strings.ToLower(name)
	spec, hasSpec := p.specs[name]

	args := make(map[string]string)
	toks = toks[1:]
	var keys []argKey
	for _, t := range toks {
		if k, ok := keyAt(t, spec, hasSpec); ok {
			keys = append(keys, k)
		}
	}
	if len(toks) > 0 && (len(keys) == 0 || keys[0].start != toks[0].start) {
		return Command{}, failf("unexpected %q, arguments are written as key: value", toks[0].text)
	}

	for i, k := range keys {
		key := k.name
		if hasSpec {
			key, _ = spec.canonical(key)
		}
		end := len(rest)
		if i+1 < len(keys) {
			end = keys[i+1].start
		}
		value := strings.TrimSpace(rest[k.valueStart:end])

		if value == "" {
			return Command{}, failf("missing value for %q", key)
		}
		if _, dup := args[key]; dup {
			return Command{}, failf("argument %q given twice", key)
		}
		args[key] = value
	}

	return Command{Name: name, Arguments: args}, nil
}

// keyAt reports whether t starts an argument. "key:" works for any key;
// "key:value" only for arguments the command declares, so values such as
// urls or "12:30" are not split.
func keyAt(t token, spec Spec, hasSpec bool) (argKey, bool) {
	m := keyPattern.FindStringSubmatch(t.text)
	if m == nil {
		return argKey{}, false
	}
	if m[2] == "" {
		return argKey{name: m[1], start: t.start, valueStart: t.end}, true
	}
	if !hasSpec || strings.HasPrefix(m[2], "//") {
		return argKey{}, false
	}
	if _, known := spec.canonical(m[1]); !known {
		return argKey{}, false
	}
	return argKey{name: m[1], start: t.start, valueStart: t.start + len(m[1]) + 1}, true
}

// tokenize splits s on unicode whitespace, keeping byte offsets.
func tokenize(s string) []token {
	var out []token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, token{text: s[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{text: s[start:], start: start, end: len(s)})
	}
	return out
}
