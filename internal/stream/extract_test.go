package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextEmptyPayload(t *testing.T) {
	assert.Empty(t, ExtractText(Event{}))
	assert.Empty(t, ExtractText(Event{Data: "   \n "}))
}

func TestExtractTextDoneMarker(t *testing.T) {
	assert.Empty(t, ExtractText(Event{Data: "[DONE]"}))
	assert.Empty(t, ExtractText(Event{Data: "  [DONE]  "}))
}

func TestExtractTextJSONString(t *testing.T) {
	assert.Equal(t, "plain value", ExtractText(Event{Data: `"plain value"`}))
}

func TestExtractTextObjectFields(t *testing.T) {
	assert.Equal(t, "from text", ExtractText(Event{Data: `{"text":"from text"}`}))
	assert.Equal(t, "from content", ExtractText(Event{Data: `{"content":"from content"}`}))

	// "text" wins when both are present
	assert.Equal(t, "a", ExtractText(Event{Data: `{"text":"a","content":"b"}`}))
}

func TestExtractTextOtherJSONValues(t *testing.T) {
	assert.Equal(t, "42", ExtractText(Event{Data: "42"}))
	assert.Equal(t, `["a","b"]`, ExtractText(Event{Data: `["a","b"]`}))

	// Object without a recognized field renders back to JSON
	assert.Equal(t, `{"other":"x"}`, ExtractText(Event{Data: `{"other":"x"}`}))
}

func TestExtractTextRawFallback(t *testing.T) {
	// Non-JSON payloads come back as raw text with literal \n sequences
	// turned into real newlines.
	assert.Equal(t, "hello\nworld", ExtractText(Event{Data: `hello\nworld`}))
	assert.Equal(t, "just text", ExtractText(Event{Data: "just text"}))
}

func TestExtractTextInvalidJSONDegrades(t *testing.T) {
	assert.Equal(t, `{"broken":`, ExtractText(Event{Data: `{"broken":`}))
}
