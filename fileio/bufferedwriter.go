package fileio

import (
	"bufio"
	"encoding/binary"
	"os"
)

// BufferedWriter does buffered writes of received images to file
type BufferedWriter struct {
	file      *os.File
	writer    *bufio.Writer
	wqLen     int
	compress  bool
	crc32Hash uint32
	pending   []byte
	err       error
}

// New creates new file for writing or returns error upon failing to do so
func (b *BufferedWriter) New(filename string, bufferSize, qlen int, compress bool) error {
	file, err := os.Create(filename)
	if err == nil {
		b.file = file
		// New buffered writer.
		b.writer = bufio.NewWriterSize(b.file, bufferSize)
		b.wqLen = qlen
		b.compress = compress
		return nil
	}
	return err
}

// StartWriting starts goroutine for writing chunks of data to file.
// The second channel yields the CRC32 of the raw data once the first is closed.
func (b *BufferedWriter) StartWriting() (chan []byte, chan []byte) {
	if b.file == nil {
		panic("cannot start writing without file handle")
	}
	hash := make(chan []byte, 1)
	// Make write queue.
	stream := make(chan []byte, b.wqLen)
	// Start consuming queue in goroutine.
	go func(chunkStream chan []byte, result chan []byte) {
		for chunk := range chunkStream {
			b.crc32Hash = progressiveChecksumCRC32(b.crc32Hash, chunk)
			if b.compress {
				// LZ4 frame is written in one go at the end.
				b.pending = append(b.pending, chunk...)
				continue
			}
			if b.err == nil {
				_, b.err = b.writer.Write(chunk)
			}
		}

		if b.compress && b.err == nil {
			var framed []byte
			if framed, b.err = CompressImage(b.pending); b.err == nil {
				_, b.err = b.writer.Write(framed)
			}
		}

		// Write any remaining bytes.
		if err := b.writer.Flush(); b.err == nil {
			b.err = err
		}
		if err := b.file.Close(); b.err == nil {
			b.err = err
		}

		// Signal that all data has been written.
		result <- binary.BigEndian.AppendUint32(make([]byte, 0, 4), b.crc32Hash)
		close(result)
	}(stream, hash)
	return stream, hash
}

// Err returns the first failure to store the image. It is only valid once
// the CRC32 has been received.
func (b *BufferedWriter) Err() error {
	return b.err
}
