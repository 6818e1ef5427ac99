// Package input expands command arguments that name a source of lines:
// "-" for stdin and "@path" for a file.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Lines expands values into one entry per non-blank line. Plain values are
// kept as they are. stdin may be read at most once.
func Lines(values []string, stdin io.Reader) ([]string, error) {
	var out []string
	stdinUsed := false
	for _, v := range values {
		switch {
		case v == "-":
			if stdinUsed {
				return nil, fmt.Errorf("stdin given more than once")
			}
			stdinUsed = true
			lines, err := ReadLines(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			out = append(out, lines...)
		case strings.HasPrefix(v, "@") && len(v) > 1:
			lines, err := readFile(v[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
		default:
			out = append(out, v)
		}
	}
	return out, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadLines returns the trimmed non-blank lines of r.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
