package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "duplicates", "merge", "automerge"}, names)
}

func TestAutoMergeAllFlagDescribesFuzzyGroups(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"automerge"})
	require.NoError(t, err)

	all := cmd.Flags().Lookup("all")
	require.NotNil(t, all)
	assert.Equal(t, "false", all.DefValue)
	assert.Contains(t, all.Usage, "fuzzy")
	assert.Contains(t, cmd.Long, "fuzzy")
}

func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"duplicates without tenant", []string{"duplicates"}, `"tenant" not set`},
		{"merge without primary", []string{"merge", "--tenant", "acme"}, `"primary" not set`},
		{"automerge without tenant", []string{"automerge"}, `"tenant" not set`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"merged_count": 2}))
	assert.Equal(t, "{\n  \"merged_count\": 2\n}\n", buf.String())
}
