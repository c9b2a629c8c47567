package exporter

import (
	"strings"
	"unicode"
)

// Fixer rewrites a candidate name into the target's identifier grammar.
type Fixer func(string) string

// NameAllocator mints identifiers that are unique within one scope and never
// equal to a reserved word. Names are never released.
type NameAllocator struct {
	fix      Fixer
	reserved map[string]struct{}
	used     map[string]struct{}
}

// NewNameAllocator returns an allocator that rejects reserved. A nil fix
// leaves candidates unchanged.
func NewNameAllocator(reserved []string, fix Fixer) *NameAllocator {
	a := &NameAllocator{
		fix:      fix,
		reserved: make(map[string]struct{}, len(reserved)),
		used:     make(map[string]struct{}),
	}
	for _, r := range reserved {
		a.reserved[r] = struct{}{}
	}
	return a
}

// Allocate returns the fixed form of name, suffixed with "_" until it
// collides with neither a reserved word nor an earlier allocation.
func (a *NameAllocator) Allocate(name string) string {
	if a.fix != nil {
		name = a.fix(name)
	}
	for a.taken(name) {
		name += "_"
	}
	a.used[name] = struct{}{}
	return name
}

// Reserved reports whether name is in the reserved set.
func (a *NameAllocator) Reserved(name string) bool {
	_, ok := a.reserved[name]
	return ok
}

func (a *NameAllocator) taken(name string) bool {
	if _, ok := a.reserved[name]; ok {
		return true
	}
	_, ok := a.used[name]
	return ok
}

// Identifier is a Fixer for C-family identifiers: every character outside
// letters, digits, '_' and '$' becomes '_', and a leading digit gets a '_'
// prefix.
func Identifier(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
