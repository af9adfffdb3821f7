package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/iobis/dupfinder/codec"
)

// ErrEmptyDocument is returned by LoadJSON for an empty input.
var ErrEmptyDocument = errors.New("metadata: empty document")

type apiPage struct {
	Total   int64     `json:"total"`
	Results []Dataset `json:"results"`
}

// LoadJSON reads dataset metadata from a JSON document. Both the OBIS API list
// shape {"results": [...]} and a plain array are accepted. A nil codec uses
// codec.Default.
func LoadJSON(r io.Reader, c codec.Codec) (Map, error) {
	if c == nil {
		c = codec.Default
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var datasets []Dataset
	if data[0] == '[' {
		err = c.Unmarshal(data, &datasets)
	} else {
		var page apiPage
		err = c.Unmarshal(data, &page)
		datasets = page.Results
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: decode: %w", err)
	}

	for i, d := range datasets {
		if d.ID == "" {
			return nil, fmt.Errorf("metadata: entry %d has no id", i)
		}
	}
	return NewMap(datasets...), nil
}
