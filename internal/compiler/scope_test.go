package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleidx/internal/ir"
)

func TestMapScope(t *testing.T) {
	s := NewMapScope(
		ir.Declaration{Name: "$p", Type: ir.Reference("Person")},
		ir.Declaration{Name: "$a", Type: ir.Reference("Address")},
	)

	d, ok := s.Declaration("$p")
	require.True(t, ok)
	assert.Equal(t, ir.Reference("Person"), d.Type)

	_, ok = s.Declaration("$missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"$a", "$p"}, s.Names())
}

func TestMapScopeAddDeclarationReplaces(t *testing.T) {
	s := NewMapScope()
	s.AddDeclaration(ir.Declaration{Name: "$x", Type: ir.Primitive(ir.PrimInt)})
	s.AddDeclaration(ir.Declaration{Name: "$x", Type: ir.Primitive(ir.PrimLong)})

	d, ok := s.Declaration("$x")
	require.True(t, ok)
	assert.Equal(t, ir.Primitive(ir.PrimLong), d.Type)
	assert.Len(t, s.Names(), 1)
}
