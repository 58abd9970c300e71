package fileio

import (
	"fmt"
	"slices"

	"pico_command_center/constants"
	"pico_command_center/networking"
	"pico_command_center/networking/opcode"
)

// Payload is a validated image ready for transfer. Data may carry zero padding
// beyond TotalSize; the device only keeps TotalSize bytes.
type Payload struct {
	Data      []byte
	TotalSize uint32 // unpadded image length, declared on the wire
	ChunkSize uint32 // declared chunk size, 0 for boot commands
}

// Chunk returns the chunk starting at offset
func (p *Payload) Chunk(offset int) []byte {
	if offset >= len(p.Data) {
		return nil
	}
	end := offset + int(p.ChunkSize)
	if end > len(p.Data) {
		end = len(p.Data)
	}
	return p.Data[offset:end]
}

// Chunks returns how many chunks cover the unpadded image
func (p *Payload) Chunks() int {
	if p.ChunkSize == 0 {
		return 0
	}
	return int((p.TotalSize + p.ChunkSize - 1) / p.ChunkSize)
}

// Prepare validates image size for the given command and pads it as the
// device expects. Boot commands take no image and get an empty payload.
func Prepare(code string, data []byte) (*Payload, error) {
	switch code {
	case opcode.LOADROM:
		if !slices.Contains(constants.ROM_SIZES, len(data)) {
			return nil, fmt.Errorf("%w: ROM file must be exactly 16384, 32768 or 65536 bytes, now %d bytes",
				networking.ErrInvalidInputSize, len(data))
		}
		return &Payload{
			Data:      padTo(data, constants.ROM_SLOT_SIZE),
			TotalSize: uint32(len(data)),
			ChunkSize: uint32(len(data)),
		}, nil
	case opcode.LOADDISK:
		if len(data) != constants.DISK_SIZE_SINGLE && len(data) != constants.DISK_SIZE_DOUBLE {
			return nil, fmt.Errorf("%w: disk image file must be exactly 172032 or 346112 bytes, now %d bytes",
				networking.ErrInvalidInputSize, len(data))
		}
		return chunked(data), nil
	case opcode.LOADTAPE:
		if len(data) > constants.MAX_CAS_SIZE {
			return nil, fmt.Errorf("%w: max supported CAS size is 524288 bytes, now %d bytes",
				networking.ErrInvalidInputSize, len(data))
		}
		return chunked(data), nil
	case opcode.BOOTLAUNCH, opcode.BOOTBIOS, opcode.BOOTPATCHED:
		return &Payload{}, nil
	}
	return nil, fmt.Errorf("no payload rules for command '%s'", code)
}

// chunked pads data to the next multiple of the transfer chunk size
func chunked(data []byte) *Payload {
	chunks := (len(data) + constants.CHUNK_SIZE - 1) / constants.CHUNK_SIZE
	return &Payload{
		Data:      padTo(data, chunks*constants.CHUNK_SIZE),
		TotalSize: uint32(len(data)),
		ChunkSize: constants.CHUNK_SIZE,
	}
}

// padTo returns a copy of data zero padded to size
func padTo(data []byte, size int) []byte {
	if size < len(data) {
		size = len(data)
	}
	padded := make([]byte, size)
	copy(padded, data)
	return padded
}
