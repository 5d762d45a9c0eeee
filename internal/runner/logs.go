package runner

import (
	"io"
	"strings"
	"sync"
)

const defaultLogMaxLines = 1000

const (
	StdoutTag = "[backend] "
	StderrTag = "[backend:error] "
)

type LogBuffer struct {
	mu      sync.Mutex
	lines   []string
	max     int
	partial string
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = defaultLogMaxLines
	}
	return &LogBuffer{max: max}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var lines []string
	lines, b.partial = splitLines(b.partial, p)
	for _, line := range lines {
		b.appendLine(line)
	}

	return len(p), nil
}

func (b *LogBuffer) appendLine(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := make([]string, 0, len(b.lines)+1)
	lines = append(lines, b.lines...)
	if b.partial != "" {
		lines = append(lines, b.partial)
	}

	if n <= 0 || n >= len(lines) {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}

	out := make([]string, n)
	copy(out, lines[len(lines)-n:])
	return out
}

func (b *LogBuffer) TailText(n int) string {
	return strings.Join(b.Tail(n), "\n")
}

func (b *LogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.partial = ""
}

// splitLines joins pending with p and returns the complete lines plus the
// new trailing fragment.
func splitLines(pending string, p []byte) ([]string, string) {
	text := pending + strings.ReplaceAll(string(p), "\r\n", "\n")
	parts := strings.Split(text, "\n")
	rest := parts[len(parts)-1]
	return parts[:len(parts)-1], rest
}

// TagWriter relays whole lines to out with a tag prefix and copies the
// untagged line into the log buffer.
type TagWriter struct {
	mu      sync.Mutex
	tag     string
	out     io.Writer
	buf     *LogBuffer
	partial string
}

func NewTagWriter(tag string, out io.Writer, buf *LogBuffer) *TagWriter {
	return &TagWriter{tag: tag, out: out, buf: buf}
}

func (w *TagWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var lines []string
	lines, w.partial = splitLines(w.partial, p)
	for _, line := range lines {
		w.emit(line)
	}
	return len(p), nil
}

// Flush writes a trailing line that never got its newline.
func (w *TagWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial == "" {
		return
	}
	line := w.partial
	w.partial = ""
	w.emit(line)
}

func (w *TagWriter) emit(line string) {
	if w.out != nil {
		_, _ = io.WriteString(w.out, w.tag+line+"\n")
	}
	if w.buf != nil {
		_, _ = w.buf.Write([]byte(line + "\n"))
	}
}
