package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	rootCmd := newRootCmd()

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "reconcile", "version"})

	err := rootCmd.ParseFlags([]string{"-c", "/tmp/depmerger.toml", "--dry-run", "-v"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/depmerger.toml", args.ConfigFile)
	assert.True(t, args.DryRun)
	assert.True(t, args.Verbose)
}
