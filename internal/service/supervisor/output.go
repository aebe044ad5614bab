package supervisor

import (
	"bytes"
	"context"
	"strings"
)

// sentinelWriter scans every written chunk for the readiness sentinel.
// The last len(sentinel)-1 bytes are carried over so a sentinel split across
// two chunks is still found. onMatch runs at most once.
type sentinelWriter struct {
	sentinel []byte
	carry    []byte
	matched  bool
	onMatch  func()
}

func newSentinelWriter(sentinel string, onMatch func()) *sentinelWriter {
	return &sentinelWriter{
		sentinel: []byte(sentinel),
		onMatch:  onMatch,
	}
}

func (w *sentinelWriter) Write(chunk []byte) (int, error) {
	if w.matched || len(w.sentinel) == 0 {
		return len(chunk), nil
	}

	window := make([]byte, 0, len(w.carry)+len(chunk))
	window = append(window, w.carry...)
	window = append(window, chunk...)

	if bytes.Contains(window, w.sentinel) {
		w.matched = true
		w.carry = nil
		w.onMatch()

		return len(chunk), nil
	}

	if keep := len(w.sentinel) - 1; len(window) > keep {
		window = window[len(window)-keep:]
	}

	w.carry = window

	return len(chunk), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(chunk []byte) (int, error) {
	t.buf = append(t.buf, chunk...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}

	return len(chunk), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

// lineLogger forwards complete lines to log. A trailing partial line waits
// for the next chunk.
type lineLogger struct {
	ctx     context.Context //nolint:containedctx // Carries the logger for a process stream.
	log     func(ctx context.Context, message string, kvs ...any)
	stream  string
	pending []byte
}

func (l *lineLogger) Write(chunk []byte) (int, error) {
	l.pending = append(l.pending, chunk...)

	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}

		line := strings.TrimRight(string(l.pending[:idx]), "\r")
		l.pending = l.pending[idx+1:]

		if line != "" {
			l.log(l.ctx, line, "stream", l.stream)
		}
	}

	return len(chunk), nil
}
