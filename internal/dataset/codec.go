package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/pixelset/internal/grid"
)

// EncodeGrid serialises a matrix into the "data" field carried by the remote
// API: a JSON array of rows.
func EncodeGrid(m grid.Matrix) (string, error) {
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodeGrid parses a "data" field. Besides the bare row array it accepts the
// image-object form {"name": ..., "grid": [...]} written by older browser
// clients.
func DecodeGrid(data string) (grid.Matrix, error) {
	raw := bytes.TrimSpace([]byte(data))
	var m grid.Matrix
	switch {
	case len(raw) > 0 && raw[0] == '{':
		var img Image
		if err := json.Unmarshal(raw, &img); err != nil {
			return nil, fmt.Errorf("%w: image data: %v", ErrValidationFailed, err)
		}
		m = img.Grid
	default:
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: image data: %v", ErrValidationFailed, err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return m, nil
}
