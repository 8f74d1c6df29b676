// Package testutil provides helpers shared by tests that need a stand-in for
// the inference process.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Shell is the interpreter used to run fake inference scripts.
const Shell = "/bin/sh"

// FakeProcess writes script to a temp dir and returns a command and argument
// prefix that run it. Staged paths appended to args arrive as $1, $2, ...
//
// The script is run through Shell rather than executed directly, which
// avoids ETXTBSY when parallel tests fork while a script is being written.
func FakeProcess(tb testing.TB, script string) (command string, args []string) {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "fake_inference.sh")
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		tb.Fatalf("write fake process: %v", err)
	}
	return Shell, []string{path}
}

// EntryCount returns the number of entries in dir.
func EntryCount(tb testing.TB, dir string) int {
	tb.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		tb.Fatalf("read dir %s: %v", dir, err)
	}
	return len(entries)
}
