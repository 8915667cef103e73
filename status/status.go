// Package status implements an Emit/Fork/Join status-reporting idiom for
// building an indented operational report without each layer knowing how
// its children render themselves.
package status

import "strings"

// Consumer accumulates indented status lines from a tree of components.
// A component calls Emit for its own lines and Fork to get a child
// Consumer for each sub-component it owns, then Join once every Fork'd
// child has finished writing.
type Consumer struct {
	depth int
	lines *[]string
}

// NewConsumer returns a root Consumer.
func NewConsumer() *Consumer {
	lines := make([]string, 0, 16)
	return &Consumer{lines: &lines}
}

// Emit appends a line at the consumer's current indentation depth.
func (c *Consumer) Emit(line string) {
	*c.lines = append(*c.lines, strings.Repeat("  ", c.depth)+line)
}

// Fork returns a child Consumer indented one level deeper, sharing the same
// underlying line buffer.
func (c *Consumer) Fork() *Consumer {
	return &Consumer{depth: c.depth + 1, lines: c.lines}
}

// Join is a no-op marker that a component has finished reporting through
// every Fork'd child. It exists so call sites read symmetrically —
// sc.Fork() ... sc.Join() — even though this implementation needs no
// bookkeeping at Join time.
func (c *Consumer) Join() {}

// String renders every accumulated line, in emission order, one per line.
func (c *Consumer) String() string {
	return strings.Join(*c.lines, "\n")
}
