package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todos.txt")
	if err := os.WriteFile(path, []byte("call mom\n\n  water plants  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Lines([]string{"first", "@" + path, "-"}, strings.NewReader("from stdin\n"))
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want := []string{"first", "call mom", "water plants", "from stdin"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLinesStdinTwice(t *testing.T) {
	if _, err := Lines([]string{"-", "-"}, strings.NewReader("x\n")); err == nil {
		t.Fatal("expected error for repeated stdin")
	}
}

func TestLinesMissingFile(t *testing.T) {
	if _, err := Lines([]string{"@" + filepath.Join(t.TempDir(), "nope")}, nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLinesLoneAt(t *testing.T) {
	got, err := Lines([]string{"@"}, nil)
	if err != nil || len(got) != 1 || got[0] != "@" {
		t.Fatalf("got %q, %v", got, err)
	}
}
