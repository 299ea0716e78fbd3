package ir

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,128}$`)

// Name is a checked identifier: 1 to 128 ASCII letters, digits or underscores.
type Name string

func ParseName(s string) (Name, error) {
	if !namePattern.MatchString(s) {
		return "", fmt.Errorf("invalid name %q", s)
	}
	return Name(s), nil
}

func (n Name) String() string { return string(n) }

// Path addresses a leaf inside a composite type, e.g. "gbuffer.albedo".
// The empty Path is the root of a singleton tree.
type Path []Name

func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		n, err := ParseName(part)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", s, err)
		}
		p = append(p, n)
	}
	return p, nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = string(n)
	}
	return strings.Join(parts, ".")
}

func (p Path) IsRoot() bool { return len(p) == 0 }

// Append returns a new Path; p is never modified.
func (p Path) Append(n ...Name) Path {
	out := make(Path, 0, len(p)+len(n))
	out = append(out, p...)
	return append(out, n...)
}

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (p Path) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Path) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = nil
		return nil
	}
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
