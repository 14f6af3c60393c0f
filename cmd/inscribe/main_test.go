// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and
// returns what it printed.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	read, write, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	saved := os.Stdout
	os.Stdout = write
	defer func() { os.Stdout = saved }()

	output := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(read)
		output <- string(data)
	}()

	fnErr := fn()
	write.Close()
	captured := <-output
	if fnErr != nil {
		t.Fatalf("command failed: %v\noutput:\n%s", fnErr, captured)
	}
	return captured
}

func TestPublishAndReadEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ledgerDir := filepath.Join(dir, "ledger")
	cacheDir := filepath.Join(dir, "cache")
	identity := filepath.Join(dir, "identity.seed")

	text := strings.Repeat("so we beat on, boats against the current\n", 200)
	storyFile := filepath.Join(dir, "story.txt")
	if err := os.WriteFile(storyFile, []byte(text), 0o600); err != nil {
		t.Fatalf("writing story file: %v", err)
	}

	publishOut := captureStdout(t, func() error {
		return runPublish([]string{
			"--ledger", ledgerDir,
			"--identity", identity,
			"--title", "The Current",
			"--author", "F. Scott",
			"--from-file", storyFile,
		})
	})

	var storyRef string
	for _, line := range strings.Split(publishOut, "\n") {
		if rest, ok := strings.CutPrefix(line, "story ref:"); ok {
			storyRef = strings.TrimSpace(rest)
		}
	}
	if len(storyRef) != 64 {
		t.Fatalf("no story ref in publish output:\n%s", publishOut)
	}

	readOut := captureStdout(t, func() error {
		return runRead([]string{
			"--ledger", ledgerDir,
			"--cache", cacheDir,
			storyRef,
		})
	})
	if readOut != text {
		t.Errorf("read output differs from the published text (%d vs %d bytes)",
			len(readOut), len(text))
	}

	// The read populated the cache; a second read serves from it even
	// with the ledger directory gone.
	if err := os.RemoveAll(ledgerDir); err != nil {
		t.Fatalf("removing ledger: %v", err)
	}
	if err := os.MkdirAll(ledgerDir, 0o755); err != nil {
		t.Fatalf("recreating ledger dir: %v", err)
	}
	cachedOut := captureStdout(t, func() error {
		return runRead([]string{
			"--ledger", ledgerDir,
			"--cache", cacheDir,
			storyRef,
		})
	})
	if cachedOut != text {
		t.Error("cached read differs from the published text")
	}

	statsOut := captureStdout(t, func() error {
		return runCacheStats([]string{"--cache", cacheDir})
	})
	if !strings.Contains(statsOut, "stories: 1") {
		t.Errorf("unexpected cache stats output:\n%s", statsOut)
	}
}

func TestKeygenIsStable(t *testing.T) {
	identity := filepath.Join(t.TempDir(), "identity.seed")

	first := captureStdout(t, func() error {
		return runKeygen([]string{"--identity", identity})
	})
	second := captureStdout(t, func() error {
		return runKeygen([]string{"--identity", identity})
	})
	if first != second {
		t.Error("keygen regenerated an existing identity")
	}
	if len(strings.TrimSpace(first)) != 64 {
		t.Errorf("public key output %q is not 64 hex chars", strings.TrimSpace(first))
	}
}
