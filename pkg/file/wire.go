package file

import (
	"strings"

	"github.com/marmos91/dittodrop/internal/protocol/wire"
)

// ToWire builds the metadata announced for r: its declared size and base
// name. Names that do not fit the wire format fail here, before anything is
// sent.
func ToWire(r *Record) (wire.Metadata, error) {
	m := wire.Metadata{Size: r.size, Name: r.Name()}
	if err := m.Validate(); err != nil {
		return wire.Metadata{}, err
	}
	if err := ValidateName(m.Name); err != nil {
		return wire.Metadata{}, err
	}
	return m, nil
}

// FromWire builds an unpopulated record whose path is destDir joined with the
// announced name.
func FromWire(m wire.Metadata, destDir string) (*Record, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateName(m.Name); err != nil {
		return nil, err
	}
	return New(JoinPath(destDir, m.Name), m.Size)
}

// ValidateName rejects names that are not a single path element.
func ValidateName(name string) error {
	if name == "" {
		return &wire.EncodingError{Field: "name", Value: name, Err: wire.ErrEmptyName}
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return &wire.EncodingError{Field: "name", Value: name, Err: wire.ErrInvalidName}
	}
	return nil
}

// JoinPath joins dir and name with exactly one "/" between them, whatever
// separators dir ends with or name starts with.
func JoinPath(dir, name string) string {
	name = strings.TrimLeft(name, "/")
	if dir == "" {
		return name
	}

	trimmed := strings.TrimRight(dir, "/")
	if trimmed == "" {
		return "/" + name
	}
	return trimmed + "/" + name
}
