// Package stream defines the byte-stream parser contract shared by
// process stdio streams and socket channels, plus the two stock parsers:
// SplitParser for delimiter-framed streams and StdioCollector for
// collect-everything streams.
//
// Message boundaries are entirely the parser's concern. The stream
// owners in this module accumulate raw bytes and repeatedly hand their
// buffer to the attached parser until it can extract no further complete
// unit; the remainder stays buffered for the next read.
package stream
