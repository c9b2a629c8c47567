package exporter

import (
	"fmt"
	"strings"

	"github.com/google/wuffs/lib/dumbindent"
)

// Buffer collects emitted source lines without indentation. String
// re-indents the text from its brace structure.
type Buffer struct {
	lines []string
}

// Line appends one line. Embedded newlines start new lines.
func (b *Buffer) Line(s string) {
	b.lines = append(b.lines, strings.Split(s, "\n")...)
}

// Linef appends a formatted line.
func (b *Buffer) Linef(format string, args ...any) {
	b.Line(fmt.Sprintf(format, args...))
}

// Block writes open, the lines body produces, then close.
func (b *Buffer) Block(open, close string, body func()) {
	b.Line(open)
	body()
	b.Line(close)
}

// Append copies the lines of o after the lines of b.
func (b *Buffer) Append(o *Buffer) {
	if o == nil {
		return
	}
	b.lines = append(b.lines, o.lines...)
}

// Lines returns the raw, unindented lines.
func (b *Buffer) Lines() []string {
	return b.lines
}

// Len returns the number of lines.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// Bytes returns the raw text, one line per entry.
func (b *Buffer) Bytes() []byte {
	if len(b.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(b.lines, "\n") + "\n")
}

// String returns the text indented by four spaces per nesting level.
func (b *Buffer) String() string {
	return string(dumbindent.FormatBytes(nil, b.Bytes(), &dumbindent.Options{Spaces: 4}))
}
