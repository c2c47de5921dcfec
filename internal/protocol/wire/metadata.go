package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	// MaxNameLen is the longest file name, in bytes, a metadata record carries.
	MaxNameLen = 255

	// countSize is the encoded size of the file count.
	countSize = 8

	// metadataHeaderSize covers the size field and the name length prefix.
	metadataHeaderSize = 8 + 4
)

// Metadata describes one file ahead of its payload. The receiver uses Size to
// allocate exactly the bytes it must read next.
//
// Field order is the wire order.
type Metadata struct {
	Size uint64
	Name string
}

// Validate checks that m can be represented on the wire.
func (m Metadata) Validate() error {
	if m.Size == 0 {
		return &EncodingError{Field: "size", Value: m.Size, Err: ErrZeroSize}
	}
	if len(m.Name) == 0 {
		return &EncodingError{Field: "name", Value: m.Name, Err: ErrEmptyName}
	}
	if len(m.Name) > MaxNameLen {
		return &EncodingError{Field: "name", Value: len(m.Name), Err: ErrNameTooLong}
	}
	return nil
}

// EncodeMetadata returns the XDR encoding of m. Nothing is encoded when m is
// invalid.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &m); err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMetadata parses one complete encoded record.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &m); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// WriteMetadata encodes m and sends it with SendAll.
func WriteMetadata(w io.Writer, m Metadata) error {
	data, err := EncodeMetadata(m)
	if err != nil {
		return err
	}
	return SendAll(w, data)
}

// ReadMetadata receives one record. The name length prefix is checked before
// the name is read, so an oversized name never causes a large allocation.
func ReadMetadata(r io.Reader) (Metadata, error) {
	header := make([]byte, metadataHeaderSize)
	if err := RecvAll(r, header); err != nil {
		return Metadata{}, fmt.Errorf("read metadata header: %w", err)
	}

	nameLen := binary.BigEndian.Uint32(header[8:])
	switch {
	case nameLen == 0:
		return Metadata{}, &EncodingError{Field: "name", Value: "", Err: ErrEmptyName}
	case nameLen > MaxNameLen:
		return Metadata{}, &EncodingError{Field: "name", Value: nameLen, Err: ErrNameTooLong}
	}

	record := make([]byte, metadataHeaderSize+padded(nameLen))
	copy(record, header)
	if err := RecvAll(r, record[metadataHeaderSize:]); err != nil {
		return Metadata{}, fmt.Errorf("read metadata name: %w", err)
	}

	return DecodeMetadata(record)
}

// WriteCount sends the number of files in the session.
func WriteCount(w io.Writer, count uint64) error {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, count); err != nil {
		return fmt.Errorf("marshal count: %w", err)
	}
	return SendAll(w, buf.Bytes())
}

// ReadCount receives the number of files in the session.
func ReadCount(r io.Reader) (uint64, error) {
	buf := make([]byte, countSize)
	if err := RecvAll(r, buf); err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}

	var count uint64
	if _, err := xdr.Unmarshal(bytes.NewReader(buf), &count); err != nil {
		return 0, fmt.Errorf("unmarshal count: %w", err)
	}
	return count, nil
}

// padded rounds n up to the XDR 4-byte boundary.
func padded(n uint32) int {
	return int((n + 3) &^ 3)
}
