package server

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap/zaptest"

	"pico_command_center/constants"
	"pico_command_center/fileio"
	"pico_command_center/networking"
	"pico_command_center/networking/opcode"
)

func start(c *qt.C, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:0"
	}
	if opts.Announce == "" {
		opts.Announce = "127.0.0.1:9"
	}
	opts.Log = zaptest.NewLogger(c)
	srv := New(opts)
	c.Assert(srv.Start(context.Background()), qt.IsNil)
	c.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dial(c *qt.C, srv *Server) net.Conn {
	conn, err := net.Dial("tcp4", srv.Addr().String())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func send(c *qt.C, conn net.Conn, code string, total, chunk uint32) {
	out, err := networking.EncodeFrame(code, total, chunk)
	c.Assert(err, qt.IsNil)
	_, err = conn.Write(out)
	c.Assert(err, qt.IsNil)
}

func expect(c *qt.C, conn net.Conn, code string) {
	hdr := make([]byte, constants.FRAME_SIZE)
	_, err := io.ReadFull(conn, hdr)
	c.Assert(err, qt.IsNil)
	frame, valid, err := networking.DecodeFrame(hdr)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)
	c.Assert(frame.Code, qt.Equals, code)
}

func request(c *qt.C, srv *Server) *Request {
	select {
	case req := <-srv.Requests():
		return req
	case <-time.After(5 * time.Second):
		c.Fatal("no request recorded")
		return nil
	}
}

func TestAnnouncesHandshake(t *testing.T) {
	c := qt.New(t)

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	c.Assert(err, qt.IsNil)
	defer pc.Close()

	start(c, Options{Announce: pc.LocalAddr().String(), Interval: 10 * time.Millisecond})

	pc.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 64)
	for i := 0; i < 2; i++ {
		n, _, err := pc.ReadFrom(buffer)
		c.Assert(err, qt.IsNil)
		c.Assert(string(buffer[:n]), qt.Equals, constants.HANDSHAKE_MESSAGE)
	}
}

func TestChunkedUploadStoresTrimmedImage(t *testing.T) {
	c := qt.New(t)
	root := c.TempDir()
	srv := start(c, Options{Root: root, Compress: true})

	image := []byte(strings.Repeat("CAS!", 5000)) // 20000 bytes, two chunks
	p, err := fileio.Prepare(opcode.LOADTAPE, image)
	c.Assert(err, qt.IsNil)

	conn := dial(c, srv)
	send(c, conn, opcode.LOADTAPE, p.TotalSize, p.ChunkSize)
	expect(c, conn, opcode.OK)
	conn.Write(p.Chunk(0))
	expect(c, conn, opcode.READY)
	conn.Write(p.Chunk(16384))
	expect(c, conn, opcode.FINISHED)

	req := request(c, srv)
	c.Assert(req.Accepted, qt.IsTrue)
	c.Assert(req.Chunks, qt.Equals, 2)
	c.Assert(req.Image, qt.DeepEquals, image)
	c.Assert(req.Checksum, qt.Equals, hex.EncodeToString(fileio.ChecksumCRC32(image)))

	stored, err := fileio.LoadImage(req.Path, false)
	c.Assert(err, qt.IsNil)
	c.Assert(stored, qt.DeepEquals, image)
	raw, err := os.ReadFile(req.Path)
	c.Assert(err, qt.IsNil)
	c.Assert(fileio.IsCompressed(raw), qt.IsTrue)
}

func TestROMSlotIsAlwaysFull(t *testing.T) {
	c := qt.New(t)
	root := c.TempDir()
	srv := start(c, Options{Root: root})

	rom := make([]byte, 16384)
	for i := range rom {
		rom[i] = 0xc3
	}
	p, err := fileio.Prepare(opcode.LOADROM, rom)
	c.Assert(err, qt.IsNil)

	conn := dial(c, srv)
	send(c, conn, opcode.LOADROM, p.TotalSize, p.ChunkSize)
	expect(c, conn, opcode.OK)
	conn.Write(p.Data)

	req := request(c, srv)
	c.Assert(req.Image, qt.DeepEquals, rom)
	stored, err := os.ReadFile(req.Path)
	c.Assert(err, qt.IsNil)
	c.Assert(stored, qt.DeepEquals, rom)
}

func TestRejectingDevice(t *testing.T) {
	c := qt.New(t)
	srv := start(c, Options{Reject: true})

	conn := dial(c, srv)
	send(c, conn, opcode.BOOTLAUNCH, 0, 0)
	expect(c, conn, opcode.ERROR)

	req := request(c, srv)
	c.Assert(req.Opcode, qt.Equals, opcode.BOOTLAUNCH)
	c.Assert(req.Accepted, qt.IsFalse)
}

func TestBootRequestsGetNoReply(t *testing.T) {
	c := qt.New(t)
	srv := start(c, Options{})

	conn := dial(c, srv)
	send(c, conn, opcode.BOOTBIOS, 0, 0)

	// Device hangs up without answering.
	n, err := conn.Read(make([]byte, 10))
	c.Assert(n, qt.Equals, 0)
	c.Assert(err, qt.Equals, io.EOF)
	c.Assert(request(c, srv).Opcode, qt.Equals, opcode.BOOTBIOS)
}

func TestUnknownCommandClosesConnection(t *testing.T) {
	c := qt.New(t)
	srv := start(c, Options{})

	conn := dial(c, srv)
	send(c, conn, "ZZ", 0, 0)

	_, err := conn.Read(make([]byte, 10))
	c.Assert(err, qt.Equals, io.EOF)
	c.Assert(request(c, srv).Opcode, qt.Equals, "ZZ")
}
