package stream

import (
	"bytes"
	"sync"
)

// StdioCollector accumulates an entire byte stream and exposes it once
// the stream ends. It is the parser of choice for short-lived commands
// whose full output is wanted as a single value.
type StdioCollector struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	finished   bool
	onFinished func(data []byte)
}

// Compile-time verification of the stream contracts.
var (
	_ Parser   = (*StdioCollector)(nil)
	_ Finisher = (*StdioCollector)(nil)
)

// NewStdioCollector creates a collector. onFinished may be nil; when set
// it receives the complete collected stream after the stream ends.
func NewStdioCollector(onFinished func(data []byte)) *StdioCollector {
	return &StdioCollector{onFinished: onFinished}
}

// Parse implements Parser. Every byte is consumed immediately.
func (c *StdioCollector) Parse(data []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Write(data)

	return len(data)
}

// Finish implements Finisher.
func (c *StdioCollector) Finish() {
	c.mu.Lock()

	if c.finished {
		c.mu.Unlock()

		return
	}

	c.finished = true
	data := append([]byte(nil), c.buf.Bytes()...)
	onFinished := c.onFinished
	c.mu.Unlock()

	if onFinished != nil {
		onFinished(data)
	}
}

// Finished reports whether the stream has ended.
func (c *StdioCollector) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.finished
}

// Bytes returns a copy of everything collected so far.
func (c *StdioCollector) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.buf.Bytes()...)
}

// Text returns everything collected so far as a string.
func (c *StdioCollector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buf.String()
}
