package stream

// Parser converts a raw byte stream into discrete logical units.
//
// Parse extracts as many complete units as possible from data, emitting
// each unit through the parser's own callback mechanism, and returns the
// number of leading bytes consumed. The stream owner keeps the unconsumed
// remainder buffered and presents it again, extended with new bytes, on
// the next readiness event. A parser therefore never sees a unit split
// across calls.
//
// Parsers are swappable at runtime. Detaching a parser from a stream
// (setting it to nil) permanently closes that stream; attaching a new
// parser afterward does not resume reads.
type Parser interface {
	Parse(data []byte) (consumed int)
}

// Finisher is implemented by parsers that want to know when their stream
// has ended (process exit, socket disconnect). The stream owner calls
// Finish exactly once, after the final Parse call for the stream.
type Finisher interface {
	Finish()
}
