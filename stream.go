package shellrig

import "github.com/shellrig/shellrig/internal/stream"

// StreamParser converts a raw byte stream into discrete logical units.
// Implementations are attached to process stdio streams and sockets;
// see the internal stream package for the consumption contract.
//
// Detaching a parser from a live stream (setting it to nil) permanently
// closes that stream; attaching a new parser afterward does not resume
// reads.
type StreamParser = stream.Parser

// SplitParser splits a byte stream on a fixed marker and emits each
// complete segment to its read callback.
type SplitParser = stream.SplitParser

// StdioCollector accumulates an entire byte stream and exposes it once
// the stream ends.
type StdioCollector = stream.StdioCollector

// NewSplitParser creates a parser splitting on marker. Use "\n" for
// line-oriented streams; an empty marker emits every read whole.
func NewSplitParser(marker string, onRead func(segment []byte)) *SplitParser {
	return stream.NewSplitParser(marker, onRead)
}

// NewStdioCollector creates a collector. onFinished may be nil; when
// set it receives the complete stream after the stream ends.
func NewStdioCollector(onFinished func(data []byte)) *StdioCollector {
	return stream.NewStdioCollector(onFinished)
}
