package commands

import (
	"fmt"
	"sort"
	"strings"
)

// Command is a successfully parsed command line. Name is lower case.
type Command struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Arg returns the value for key, or "" when absent.
func (c Command) Arg(key string) string { return c.Arguments[key] }

// ParseFailure is returned for malformed input. Reason is shown to the user as is.
type ParseFailure struct {
	Reason string
}

func (e *ParseFailure) Error() string { return e.Reason }

func failf(format string, args ...any) *ParseFailure {
	return &ParseFailure{Reason: fmt.Sprintf(format, args...)}
}

// ArgSpec describes one argument accepted by a command.
type ArgSpec struct {
	Name     string
	Required bool
	Hint     string
	// Aliases are accepted in place of Name and stored under Name.
	Aliases  []string
}

// Spec describes one command: its name and the argument set it expects.
type Spec struct {
	Name    string
	Summary string
	Args    []ArgSpec
}

// Usage renders the command with its arguments, optional ones in brackets.
func (s Spec) Usage(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(s.Name)
	for _, a := range s.Args {
		part := fmt.Sprintf("%s: <%s>", a.Name, a.hint())
		if !a.Required {
			part = "[" + part + "]"
		}
		b.WriteString(" ")
		b.WriteString(part)
	}
	return b.String()
}

func (a ArgSpec) hint() string {
	if a.Hint != "" {
		return a.Hint
	}
	return a.Name
}

// canonical maps key case-insensitively onto a declared argument name or alias.
func (s Spec) canonical(key string) (string, bool) {
	for _, a := range s.Args {
		if strings.EqualFold(a.Name, key) {
			return a.Name, true
		}
		for _, alias := range a.Aliases {
			if strings.EqualFold(alias, key) {
				return a.Name, true
			}
		}
	}
	return key, false
}

// Check reports unknown keys and missing required arguments.
func (s Spec) Check(c Command) error {
	var unknown []string
	for k := range c.Arguments {
		if _, ok := s.canonical(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown argument %s", strings.Join(unknown, ", "))
	}
	for _, a := range s.Args {
		if a.Required && c.Arguments[a.Name] == "" {
			return fmt.Errorf("missing required argument %s", a.Name)
		}
	}
	return nil
}
