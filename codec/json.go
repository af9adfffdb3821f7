package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
// Output is interchangeable with GoJSON.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// MarshalIndent encodes the value to indented JSON.
func (JSON) MarshalIndent(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for new manifests and metadata documents.
var Default Codec = GoJSON{}

// Indenter is implemented by codecs that can produce indented output.
type Indenter interface {
	MarshalIndent(v any) ([]byte, error)
}

// MarshalIndent uses c's indented form when it has one.
func MarshalIndent(c Codec, v any) ([]byte, error) {
	if ind, ok := c.(Indenter); ok {
		return ind.MarshalIndent(v)
	}
	return c.Marshal(v)
}
