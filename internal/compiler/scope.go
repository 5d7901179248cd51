package compiler

import (
	"slices"
	"sync"

	"github.com/roach88/ruleidx/internal/ir"
)

// DeclarationScope resolves declaration names visible to a constraint.
//
// The compiler only reads the scope during analysis; unification
// constraints register the variable they introduce through AddDeclaration.
type DeclarationScope interface {
	Declaration(name string) (ir.Declaration, bool)
	AddDeclaration(d ir.Declaration)
}

// MapScope is a DeclarationScope backed by a map.
//
// Thread-safety: concurrent lookups are safe. Compilation of a single rule
// must still be serialized by the caller, since unification adds entries.
type MapScope struct {
	mu    sync.RWMutex
	decls map[string]ir.Declaration
}

// NewMapScope creates a scope holding decls.
func NewMapScope(decls ...ir.Declaration) *MapScope {
	s := &MapScope{decls: make(map[string]ir.Declaration, len(decls))}
	for _, d := range decls {
		s.decls[d.Name] = d
	}
	return s
}

// Declaration returns the declaration named name.
func (s *MapScope) Declaration(name string) (ir.Declaration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decls[name]
	return d, ok
}

// AddDeclaration registers d, replacing any declaration of the same name.
func (s *MapScope) AddDeclaration(d ir.Declaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decls[d.Name] = d
}

// Names returns the declared names in sorted order.
func (s *MapScope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.decls))
	for name := range s.decls {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
