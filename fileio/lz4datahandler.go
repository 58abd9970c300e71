package fileio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4FrameMagic starts every LZ4 frame
const lz4FrameMagic = 0x184D2204

// IsCompressed tells whether data starts with an LZ4 frame header.
// LoadImage never decides on it, raw images may start with the same bytes.
func IsCompressed(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == lz4FrameMagic
}

// CompressImage wraps image data in an LZ4 frame
func CompressImage(data []byte) ([]byte, error) {
	buffer := new(bytes.Buffer)
	zw := lz4.NewWriter(buffer)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecompressImage returns the raw image contained in an LZ4 frame
func DecompressImage(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
