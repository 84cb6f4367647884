package record

import (
	"fmt"
	"strings"
)

// Flattening selects how record data is placed in the output document.
type Flattening uint8

const (
	// NoFlattening nests the data under ColumnData.
	NoFlattening Flattening = iota
	// RootLevelFlattening merges the data fields into the document root.
	RootLevelFlattening
)

// String returns the configuration spelling of f.
func (f Flattening) String() string {
	switch f {
	case NoFlattening:
		return "No flattening"
	case RootLevelFlattening:
		return "Root level flattening"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseFlattening accepts the configuration spellings plus the short forms
// "no"/"none" and "root".
func ParseFlattening(name string) (Flattening, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "no", "none", "no flattening":
		return NoFlattening, nil
	case "root", "root level flattening":
		return RootLevelFlattening, nil
	default:
		return 0, fmt.Errorf("unknown flattening: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Flattening) MarshalText() ([]byte, error) {
	if f > RootLevelFlattening {
		return nil, fmt.Errorf("unknown flattening: %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Flattening) UnmarshalText(text []byte) error {
	parsed, err := ParseFlattening(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
