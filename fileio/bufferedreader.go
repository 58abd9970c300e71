package fileio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LZ4Suffix marks an image file stored as an LZ4 frame
const LZ4Suffix = ".lz4"

// LoadImage reads a whole image file as raw bytes. The content is never
// sniffed: only files named *.lz4, or any file when compressed is set, are
// decompressed, so size checks always apply to the raw image.
func LoadImage(filename string, compressed bool) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(bufio.NewReader(file))
	if err != nil {
		return nil, err
	}

	if compressed || strings.HasSuffix(strings.ToLower(filename), LZ4Suffix) {
		raw, err := DecompressImage(data)
		if err != nil {
			return nil, fmt.Errorf("%s: corrupt lz4 image: %w", filename, err)
		}
		return raw, nil
	}
	return data, nil
}
