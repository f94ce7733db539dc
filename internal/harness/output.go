package harness

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
)

// OutputBuffer keeps the most recent output of a server, line by line, up to a byte limit.
// It is used for error messages only.
type OutputBuffer struct {
	mu    sync.Mutex
	limit int
	lines [][]byte
	size  int
	// number of lines dropped to stay under the limit
	dropped int
}

func NewOutputBuffer(limit int) *OutputBuffer {
	if limit <= 0 {
		limit = 64 * 1024
	}
	return &OutputBuffer{limit: limit}
}

// Write splits p into lines. It never fails, so the buffer can sit behind slog handlers.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		b.appendLine(bytes.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (b *OutputBuffer) appendLine(line []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(line) > b.limit {
		line = line[len(line)-b.limit:]
	}
	b.lines = append(b.lines, append([]byte(nil), line...))
	b.size += len(line) + 1

	for b.size > b.limit && len(b.lines) > 1 {
		b.size -= len(b.lines[0]) + 1
		b.lines = b.lines[1:]
		b.dropped++
	}
}

// ReadFrom copies r into the buffer line by line until EOF or a read error.
// Lines longer than the limit keep their tail; reading never stops early on a long line.
func (b *OutputBuffer) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	var line []byte
	br := bufio.NewReaderSize(r, 4096)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 {
				b.appendLine(line)
			}
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		n += int64(len(chunk))

		line = append(line, chunk...)
		if len(line) > b.limit {
			line = append(line[:0], line[len(line)-b.limit:]...)
		}
		if isPrefix {
			continue
		}
		n++
		b.appendLine(line)
		line = line[:0]
	}
}

// String returns the buffered lines, prefixed with a marker when older lines were dropped.
func (b *OutputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out bytes.Buffer
	if b.dropped > 0 {
		out.WriteString("[... earlier output truncated ...]\n")
	}
	for _, line := range b.lines {
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.String()
}

// Lines returns a copy of the buffered lines.
func (b *OutputBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := make([]string, len(b.lines))
	for i, l := range b.lines {
		lines[i] = string(l)
	}
	return lines
}
