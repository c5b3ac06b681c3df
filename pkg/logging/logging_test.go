package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rexliu/n2kd/pkg/config"
)

func TestConfigurePrefixesLevel(t *testing.T) {
	l := New("n2kd")
	if err := l.Configure(config.LoggingConfig{Level: "debug"}, nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !strings.HasPrefix(l.Prefix(), "DEBUG ") {
		t.Fatalf("expected prefix to start with DEBUG, got %q", l.Prefix())
	}
}

func TestConfigureMirrorsToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "n2kd.log")

	l := New("n2kd")
	if err := l.Configure(config.LoggingConfig{FilePath: path, FileMaxSizeMB: 1, MaxGenerations: 3}, nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	l.Println("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log file to contain message, got %q", data)
	}
}

func TestRollingFileRotatesThroughGenerationRing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n2kd.log")

	var rotated []string
	rf, err := newRollingFile(path, 0, 2, func(detail string) { rotated = append(rotated, detail) })
	if err != nil {
		t.Fatalf("newRollingFile: %v", err)
	}
	rf.maxBytes = 1

	for i := 0; i < 5; i++ {
		if _, err := rf.Write([]byte("x")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// Writes 2-5 each exceed the 1-byte threshold and rotate; write 1 fits
	// within it untouched.
	if len(rotated) != 4 {
		t.Fatalf("expected 4 rotations, got %d: %v", len(rotated), rotated)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected generation 1 file: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected generation 2 file: %v", err)
	}
	// A 3rd rotation with a 2-generation ring must wrap and overwrite ".1"
	// again rather than creating a ".3".
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Fatalf("did not expect a 3rd generation file with MaxGenerations=2")
	}
}
