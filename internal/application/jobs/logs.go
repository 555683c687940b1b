package jobs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineBytes caps a single log line. Longer lines, such as progress output
// without newlines, are cut and marked.
const maxLineBytes = 64 * 1024

const truncatedMarker = " [truncated]"

// ReadLog returns up to limit lines of the log at path starting at line
// offset, and the offset to continue from.
func ReadLog(path string, offset, limit int) ([]string, int, error) {
	if offset < 0 {
		offset = 0
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("failed to open job log: %w", err)
	}
	defer f.Close()

	lines := []string{}
	r := bufio.NewReader(f)
	for n := 0; limit <= 0 || len(lines) < limit; n++ {
		line, err := readLine(r, n >= offset)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, offset, fmt.Errorf("failed to read job log: %w", err)
		}
		if n >= offset {
			lines = append(lines, line)
		}
	}
	return lines, offset + len(lines), nil
}

// readLine reads one line of any length. When keep is false the content is
// discarded.
func readLine(r *bufio.Reader, keep bool) (string, error) {
	var buf []byte
	truncated := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if keep {
			room := maxLineBytes - len(buf)
			if len(chunk) > room {
				chunk = chunk[:room]
				truncated = true
			}
			buf = append(buf, chunk...)
		}
		if !isPrefix {
			break
		}
	}
	if truncated {
		return string(buf) + truncatedMarker, nil
	}
	return string(buf), nil
}
