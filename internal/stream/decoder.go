// Package stream decodes server-sent event streams into discrete events
// and extracts display text from them. It is how the client side of the
// system renders a live AI-analysis response while it is still being
// generated. Decoding is pure: callers thread the partial buffer through
// successive calls, so any number of streams can be decoded concurrently
// without shared state.
package stream

import "strings"

// Event is one blank-line-delimited unit of a streamed response
type Event struct {
	// Type is the optional event label ("event: <label>" line)
	Type string
	// Data is the payload, multiple data lines joined with newlines
	Data string
}

// Decode consumes a new chunk of the stream together with the carried-over
// partial buffer and returns the complete events plus the new partial
// buffer. Chunk boundaries are arbitrary: decoding chunk A then chunk B
// yields the same events as decoding A+B in one call.
func Decode(partial, chunk string) ([]Event, string) {
	s := partial + chunk

	// A trailing CR may be the first half of a CRLF pair split across
	// chunks; hold it back until the next chunk arrives so normalization
	// stays chunking-independent.
	heldCR := ""
	if strings.HasSuffix(s, "\r") {
		heldCR = "\r"
		s = strings.TrimSuffix(s, "\r")
	}

	s = normalizeNewlines(s)

	segments := strings.Split(s, "\n\n")

	// Every segment except the last is terminated by a blank line and
	// therefore complete. The last one is the new partial buffer; it is
	// empty when the input ended exactly on a separator.
	var events []Event
	for _, seg := range segments[:len(segments)-1] {
		if ev, ok := parseSegment(seg); ok {
			events = append(events, ev)
		}
	}

	return events, segments[len(segments)-1] + heldCR
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// parseSegment turns one complete segment into an Event. Lines that carry
// neither an event nor a data marker are tolerated and appended to the
// payload; a segment with no content at all yields no event.
func parseSegment(seg string) (Event, bool) {
	var ev Event
	var dataLines []string

	for _, line := range strings.Split(seg, "\n") {
		switch {
		case line == "":
			// stray blank line, nothing to contribute
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			dataLines = append(dataLines, value)
		default:
			// Malformed input degrades to raw payload text instead of
			// failing the stream.
			dataLines = append(dataLines, line)
		}
	}

	if ev.Type == "" && len(dataLines) == 0 {
		return Event{}, false
	}

	ev.Data = strings.Join(dataLines, "\n")
	return ev, true
}
