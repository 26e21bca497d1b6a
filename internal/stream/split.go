package stream

import "bytes"

// SplitParser splits a byte stream on a fixed marker and emits each
// complete segment, without the marker, to its read callback.
//
// An empty marker disables splitting: every non-empty chunk handed to
// Parse is emitted whole.
type SplitParser struct {
	marker []byte
	onRead func(segment []byte)
}

// Compile-time verification that SplitParser implements Parser.
var _ Parser = (*SplitParser)(nil)

// NewSplitParser creates a parser splitting on marker. Use "\n" for
// line-oriented streams. onRead may be nil, in which case segments are
// consumed and discarded.
func NewSplitParser(marker string, onRead func(segment []byte)) *SplitParser {
	return &SplitParser{
		marker: []byte(marker),
		onRead: onRead,
	}
}

// Parse implements Parser.
func (p *SplitParser) Parse(data []byte) int {
	if len(p.marker) == 0 {
		if len(data) > 0 && p.onRead != nil {
			p.onRead(data)
		}

		return len(data)
	}

	consumed := 0

	for {
		i := bytes.Index(data[consumed:], p.marker)
		if i < 0 {
			return consumed
		}

		segment := data[consumed : consumed+i]
		consumed += i + len(p.marker)

		if p.onRead != nil {
			p.onRead(segment)
		}
	}
}
