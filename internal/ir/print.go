package ir

import (
	"strconv"
	"strings"
)

// literalSuffixes are the source suffixes of typed numeric literals.
var literalSuffixes = map[LiteralKind]string{
	LitLong:       "L",
	LitFloat:      "f",
	LitDecimal:    "B",
	LitBigInteger: "I",
}

// Print renders e as source text. The output is deterministic and is what
// diagnostics, golden files and the catalog store use.
func Print(e Expr) string {
	var b strings.Builder
	printExpr(&b, e)
	return b.String()
}

func printExpr(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Name:
		b.WriteString(n.Ident)
	case *FieldAccess:
		printOperand(b, n.Scope)
		b.WriteByte('.')
		b.WriteString(n.Field)
	case *MethodCall:
		if n.Scope != nil {
			printOperand(b, n.Scope)
			b.WriteByte('.')
		}
		b.WriteString(n.Name)
		printArgs(b, n.Args)
	case *Literal:
		printLiteral(b, n)
	case *Cast:
		b.WriteByte('(')
		b.WriteString(n.Type.String())
		b.WriteString(") ")
		printOperand(b, n.Expr)
	case *New:
		b.WriteString("new ")
		b.WriteString(n.Type.String())
		printArgs(b, n.Args)
	case *Binary:
		printExpr(b, n.Left)
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		b.WriteByte(' ')
		printExpr(b, n.Right)
	case *Enclosed:
		b.WriteByte('(')
		printExpr(b, n.Inner)
		b.WriteByte(')')
	case *Lambda:
		if len(n.Params) == 1 {
			b.WriteString(n.Params[0])
		} else {
			b.WriteByte('(')
			b.WriteString(strings.Join(n.Params, ", "))
			b.WriteByte(')')
		}
		b.WriteString(" -> ")
		printExpr(b, n.Body)
	}
}

// printOperand parenthesizes nodes that bind looser than a member access.
func printOperand(b *strings.Builder, e Expr) {
	switch e.(type) {
	case *Binary, *Cast, *Lambda:
		b.WriteByte('(')
		printExpr(b, e)
		b.WriteByte(')')
	default:
		printExpr(b, e)
	}
}

func printArgs(b *strings.Builder, args []Expr) {
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		printExpr(b, a)
	}
	b.WriteByte(')')
}

func printLiteral(b *strings.Builder, l *Literal) {
	switch l.Kind {
	case LitString:
		b.WriteString(strconv.Quote(l.Text))
	case LitChar:
		b.WriteByte('\'')
		b.WriteString(l.Text)
		b.WriteByte('\'')
	case LitNull:
		b.WriteString("null")
	default:
		b.WriteString(l.Text)
		b.WriteString(literalSuffixes[l.Kind])
	}
}
