package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

// execCommand runs a freshly built command with args, swallowing its
// stdout/stderr rendering.
func execCommand(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	if err := execCommand(t, newVersionCmd()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
}
