package stream

import (
	"encoding/json"
	"strings"
)

// DoneMarker is the payload the upstream model API emits to signal the end
// of the stream.
const DoneMarker = "[DONE]"

// ExtractText returns the display text carried by an event. Payloads may be
// a JSON string, a JSON object with a "text" or "content" field, any other
// JSON value, or raw text; the stream-end marker and empty payloads yield
// an empty string. ExtractText never fails: every input produces some
// string.
func ExtractText(ev Event) string {
	payload := strings.TrimSpace(ev.Data)
	if payload == "" || payload == DoneMarker {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal([]byte(payload), &value); err == nil {
		switch v := value.(type) {
		case string:
			return v
		case map[string]interface{}:
			if text, ok := v["text"].(string); ok {
				return text
			}
			if content, ok := v["content"].(string); ok {
				return content
			}
		}
		// Some other JSON value; render it back to a string form
		if rendered, err := json.Marshal(value); err == nil {
			return string(rendered)
		}
	}

	// Not JSON: treat as raw text, turning literal \n sequences into real
	// newlines.
	return strings.ReplaceAll(payload, `\n`, "\n")
}
