package fileio

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"pico_command_center/networking"
	"pico_command_center/networking/opcode"
)

func image(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

func TestPrepareROMPadsToSlot(t *testing.T) {
	for _, size := range []int{16384, 32768, 65536} {
		c := qt.New(t)
		data := image(size)

		p, err := Prepare(opcode.LOADROM, data)
		c.Assert(err, qt.IsNil)
		c.Assert(p.Data, qt.HasLen, 65536)
		c.Assert(p.TotalSize, qt.Equals, uint32(size))
		c.Assert(p.ChunkSize, qt.Equals, uint32(size))
		c.Assert(p.Data[:size], qt.DeepEquals, data)
		c.Assert(bytes.Count(p.Data[size:], []byte{0}), qt.Equals, 65536-size)
	}
}

func TestPrepareRejectsBadSizes(t *testing.T) {
	tests := []struct {
		code string
		size int
	}{
		{opcode.LOADROM, 0},
		{opcode.LOADROM, 16383},
		{opcode.LOADROM, 49152},
		{opcode.LOADROM, 65537},
		{opcode.LOADDISK, 172031},
		{opcode.LOADDISK, 346113},
		{opcode.LOADDISK, 16384},
		{opcode.LOADTAPE, 524289},
	}
	for _, test := range tests {
		c := qt.New(t)
		_, err := Prepare(test.code, make([]byte, test.size))
		c.Assert(err, qt.ErrorIs, networking.ErrInvalidInputSize, qt.Commentf("%s %d", test.code, test.size))
	}
}

func TestPrepareDiskChunks(t *testing.T) {
	for _, size := range []int{172032, 346112} {
		c := qt.New(t)
		data := image(size)

		p, err := Prepare(opcode.LOADDISK, data)
		c.Assert(err, qt.IsNil)
		c.Assert(p.TotalSize, qt.Equals, uint32(size))
		c.Assert(p.ChunkSize, qt.Equals, uint32(16384))
		c.Assert(len(p.Data)%16384, qt.Equals, 0)
		c.Assert(p.Chunks(), qt.Equals, (size+16383)/16384)

		var sent []byte
		offset := 0
		for i := 0; i < p.Chunks(); i++ {
			chunk := p.Chunk(offset)
			c.Assert(chunk, qt.HasLen, 16384)
			sent = append(sent, chunk...)
			offset += 16384
		}
		c.Assert(offset >= size, qt.IsTrue)
		c.Assert(sent[:size], qt.DeepEquals, data)
	}
}

func TestPrepareTape(t *testing.T) {
	c := qt.New(t)

	p, err := Prepare(opcode.LOADTAPE, image(100))
	c.Assert(err, qt.IsNil)
	c.Assert(p.Data, qt.HasLen, 16384)
	c.Assert(p.TotalSize, qt.Equals, uint32(100))
	c.Assert(p.Chunks(), qt.Equals, 1)

	p, err = Prepare(opcode.LOADTAPE, image(524288))
	c.Assert(err, qt.IsNil)
	c.Assert(p.Data, qt.HasLen, 524288)
	c.Assert(p.Chunks(), qt.Equals, 32)

	p, err = Prepare(opcode.LOADTAPE, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Data, qt.HasLen, 0)
	c.Assert(p.Chunk(0), qt.IsNil)
}

func TestPrepareBootCommands(t *testing.T) {
	for _, code := range []string{opcode.BOOTLAUNCH, opcode.BOOTBIOS, opcode.BOOTPATCHED} {
		c := qt.New(t)
		p, err := Prepare(code, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(*p, qt.DeepEquals, Payload{})
	}
}

func TestPrepareUnknownCommand(t *testing.T) {
	c := qt.New(t)

	_, err := Prepare("XX", nil)
	c.Assert(err, qt.ErrorMatches, "no payload rules for command 'XX'")
}

func TestLoadImage(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	data := image(32768)

	raw := filepath.Join(dir, "game.rom")
	c.Assert(os.WriteFile(raw, data, 0o644), qt.IsNil)

	framed, err := CompressImage(data)
	c.Assert(err, qt.IsNil)
	c.Assert(IsCompressed(framed), qt.IsTrue)
	compressed := filepath.Join(dir, "game.rom.lz4")
	c.Assert(os.WriteFile(compressed, framed, 0o644), qt.IsNil)

	// A framed image under any name loads when the caller opts in.
	forced := filepath.Join(dir, "game.bin")
	c.Assert(os.WriteFile(forced, framed, 0o644), qt.IsNil)
	upper := filepath.Join(dir, "GAME.ROM.LZ4")
	c.Assert(os.WriteFile(upper, framed, 0o644), qt.IsNil)

	for _, tc := range []struct {
		path       string
		compressed bool
	}{
		{raw, false},
		{compressed, false},
		{upper, false},
		{forced, true},
	} {
		got, err := LoadImage(tc.path, tc.compressed)
		c.Assert(err, qt.IsNil, qt.Commentf("%s", tc.path))
		c.Assert(got, qt.DeepEquals, data)
	}

	// Without the suffix or the flag the frame bytes are the image.
	got, err := LoadImage(forced, false)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, framed)

	_, err = LoadImage(filepath.Join(dir, "missing.rom"), false)
	c.Assert(err, qt.ErrorIs, os.ErrNotExist)
}

func TestLoadImageRawWithFrameMagic(t *testing.T) {
	c := qt.New(t)

	data := image(16384)
	copy(data, []byte{0x04, 0x22, 0x4d, 0x18})
	c.Assert(IsCompressed(data), qt.IsTrue)
	path := filepath.Join(c.TempDir(), "game.rom")
	c.Assert(os.WriteFile(path, data, 0o644), qt.IsNil)

	got, err := LoadImage(path, false)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, data)

	p, err := Prepare(opcode.LOADROM, got)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Data[:4], qt.DeepEquals, []byte{0x04, 0x22, 0x4d, 0x18})
	c.Assert(p.TotalSize, qt.Equals, uint32(16384))
}

func TestLoadImageCorruptFrame(t *testing.T) {
	c := qt.New(t)

	framed, err := CompressImage(image(16384))
	c.Assert(err, qt.IsNil)
	path := filepath.Join(c.TempDir(), "broken.lz4")
	c.Assert(os.WriteFile(path, framed[:len(framed)/2], 0o644), qt.IsNil)

	_, err = LoadImage(path, false)
	c.Assert(err, qt.ErrorMatches, ".*corrupt lz4 image.*")
}

func TestChecksumCRC32(t *testing.T) {
	c := qt.New(t)

	c.Assert(ChecksumCRC32([]byte("123456789")), qt.DeepEquals, []byte{0xcb, 0xf4, 0x39, 0x26})
	c.Assert(progressiveChecksumCRC32(progressiveChecksumCRC32(0, []byte("1234")), []byte("56789")),
		qt.Equals, uint32(0xcbf43926))
}
