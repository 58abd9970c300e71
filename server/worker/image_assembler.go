package worker

import (
	"pico_command_center/constants"
	"pico_command_center/fileio"
)

// ImageAssembler collects received chunks, drops the padding beyond the
// declared size and persists the image
type ImageAssembler struct {
	writer      fileio.FileWriter
	queue       chan []byte
	fioComplete chan []byte
	remaining   int
	image       []byte
}

// NewFile prepares assembler for an image of total bytes. Empty filename keeps it in memory only.
func (a *ImageAssembler) NewFile(factory fileio.IOFactory, filename string, total int, compress bool) error {
	a.remaining = total
	a.image = make([]byte, 0, total)
	if filename == "" {
		return nil
	}
	a.writer = factory.NewWriter()
	if err := a.writer.New(filename, constants.CHUNK_SIZE, 4, compress); err != nil {
		return err
	}
	a.queue, a.fioComplete = a.writer.StartWriting()
	return nil
}

// Add appends chunk, keeping only bytes within the declared size
func (a *ImageAssembler) Add(chunk []byte) {
	if len(chunk) > a.remaining {
		chunk = chunk[:a.remaining]
	}
	a.remaining -= len(chunk)
	if len(chunk) == 0 {
		return
	}
	a.image = append(a.image, chunk...)
	if a.queue != nil {
		// Writer keeps the slice, hand it a copy.
		a.queue <- append([]byte(nil), chunk...)
	}
}

// Stop waits for the image to be persisted and returns its CRC32, or the
// error that kept it from being stored
func (a *ImageAssembler) Stop() ([]byte, error) {
	if a.queue == nil {
		return fileio.ChecksumCRC32(a.image), nil
	}
	close(a.queue)
	sum := <-a.fioComplete
	if err := a.writer.Err(); err != nil {
		return nil, err
	}
	return sum, nil
}

// Image returns the bytes received so far
func (a *ImageAssembler) Image() []byte {
	return a.image
}
