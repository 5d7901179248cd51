package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// peopleRules is a rule file whose rules all compile.
const peopleRules = `
package rules

rule: adults: {
	declarations: "$other": "Person"
	constraints: [{
		left:  {expr: {field: "age"}, type: "int"}
		op:    ">"
		right: {expr: {literal: 18}, type: "int"}
	}, {
		left:  {expr: {field: "age"}, type: "int"}
		op:    ">"
		right: {expr: {field: "age", of: "$other"}, type: "int"}
		uses:  ["$other"]
	}, {
		expr: {field: "active"}
	}]
}

rule: heavy: constraints: [{
	left:  {expr: {field: "weight"}, type: "long"}
	op:    ">="
	right: {expr: {literal: 10}, type: "int"}
}, {
	left:  {expr: {field: "salary"}, type: "BigDecimal"}
	op:    "<"
	right: {expr: {literal: 100}, type: "int"}
}]
`

// limitsRules has a receiverless call on the right operand.
const limitsRules = `
package rules

rule: limits: {
	declarations: "$other": "Person"
	constraints: [{
		left:  {expr: {field: "age"}, type: "int"}
		op:    "<"
		right: {expr: {call: "limit"}, type: "int"}
		uses:  ["$other"]
	}]
}
`

// ghostRules uses a declaration that is never declared.
const ghostRules = `
package rules

rule: ghosts: constraints: [{
	left:  {expr: {field: "age"}, type: "int"}
	op:    "=="
	right: {expr: {field: "age", of: "$ghost"}, type: "int"}
	uses:  ["$ghost"]
}]
`

// floatRules carries a float literal, which fails to decode.
const floatRules = `
package rules

rule: bad: constraints: [{
	left:  {expr: {field: "score"}, type: "double"}
	op:    ">"
	right: {expr: {literal: 1.5}, type: "double"}
}]
`

// writeRules writes content as rules.cue in a fresh temp dir.
func writeRules(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(content), 0644))
	return dir
}

// execute runs cmd with args and returns stdout and the error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
