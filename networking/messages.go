package networking

import (
	"encoding/binary"
	"errors"
	"pico_command_center/constants"
)

// Frame is the fixed size command frame exchanged over TCP.
//
// Wire layout:
//
//	[2 bytes] ASCII command code
//	[4 bytes] total size (big-endian uint32)
//	[4 bytes] chunk size (big-endian uint32)
//
// Device responses reuse the layout with both size fields zeroed.
type Frame struct {
	Code      string
	TotalSize uint32
	ChunkSize uint32
}

// ErrBadCode is returned when a command code is not exactly 2 ASCII bytes.
var ErrBadCode = errors.New("command code must be 2 ASCII characters")

// EncodeFrame encodes command code and size fields to a 10 byte frame
func EncodeFrame(code string, totalSize, chunkSize uint32) ([]byte, error) {
	if !validCode(code) {
		return nil, ErrBadCode
	}
	out := make([]byte, constants.FRAME_SIZE)
	copy(out[0:2], code)
	binary.BigEndian.PutUint32(out[2:6], totalSize)
	binary.BigEndian.PutUint32(out[6:10], chunkSize)
	return out, nil
}

// FrameToBytes encodes frame to slice of bytes
func FrameToBytes(frame *Frame) ([]byte, error) {
	return EncodeFrame(frame.Code, frame.TotalSize, frame.ChunkSize)
}

// DecodeFrame decodes exactly one frame. It never fails on the trailing 8 bytes,
// instead reporting whether they are all zero as device responses require.
func DecodeFrame(message []byte) (*Frame, bool, error) {
	if len(message) < constants.FRAME_SIZE {
		return nil, false, errors.New("frame length should always be 10 bytes")
	}
	frame := &Frame{
		Code:      string(message[0:2]),
		TotalSize: binary.BigEndian.Uint32(message[2:6]),
		ChunkSize: binary.BigEndian.Uint32(message[6:10]),
	}
	return frame, frame.TotalSize == 0 && frame.ChunkSize == 0, nil
}

// NextFrame pops one complete frame from the head of buffer.
// It returns ok=false when fewer than 10 bytes are buffered.
func NextFrame(buffer []byte) (frame *Frame, validPadding bool, rest []byte, ok bool) {
	if len(buffer) < constants.FRAME_SIZE {
		return nil, false, buffer, false
	}
	frame, validPadding, _ = DecodeFrame(buffer[:constants.FRAME_SIZE])
	return frame, validPadding, buffer[constants.FRAME_SIZE:], true
}

// Response builds a device response frame with zero padding
func Response(code string) []byte {
	out, err := EncodeFrame(code, 0, 0)
	if err != nil {
		panic(err)
	}
	return out
}

func validCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] > 0x7f {
			return false
		}
	}
	return true
}
