package server

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"path/filepath"

	"go.uber.org/zap"

	"pico_command_center/constants"
	"pico_command_center/fileio"
	"pico_command_center/networking"
	"pico_command_center/networking/opcode"
	"pico_command_center/server/worker"
)

// Request records one command handled by the emulated device
type Request struct {
	Opcode    string
	TotalSize uint32
	ChunkSize uint32
	Accepted  bool
	Chunks    int    // chunks requested from the host
	Image     []byte // received image without padding
	Checksum  string // CRC32 of Image, empty when storing failed
	Path      string // where the image was stored, if anywhere
}

// Handler plays the device side of one connection
type Handler struct {
	root     string
	reject   bool
	compress bool
	stored   int
	log      *zap.Logger
}

// handleRequest reads one command frame and answers it the way the device does
func (h *Handler) handleRequest(conn net.Conn) (*Request, error) {
	hdr := make([]byte, constants.FRAME_SIZE)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return nil, err
	}
	frame, _, err := networking.DecodeFrame(hdr)
	if err != nil {
		return nil, err
	}

	req := &Request{Opcode: frame.Code, TotalSize: frame.TotalSize, ChunkSize: frame.ChunkSize}
	h.log.Info("command received", zap.String("code", frame.Code),
		zap.Uint32("total", frame.TotalSize), zap.Uint32("chunk", frame.ChunkSize))

	switch frame.Code {
	case opcode.LOADROM:
		err = h.loadROM(conn, req)
	case opcode.LOADDISK, opcode.LOADTAPE:
		err = h.loadChunked(conn, req)
	case opcode.BOOTLAUNCH:
		err = h.reply(conn, req)
	case opcode.BOOTBIOS, opcode.BOOTPATCHED:
		// No answer, the device reboots.
		req.Accepted = true
	default:
		return req, fmt.Errorf("unknown command '%s'", frame.Code)
	}
	return req, err
}

// reply answers OK, or ER when configured to refuse
func (h *Handler) reply(conn net.Conn, req *Request) error {
	code := opcode.OK
	if h.reject {
		code = opcode.ERROR
	}
	req.Accepted = !h.reject
	_, err := conn.Write(networking.Response(code))
	return err
}

// loadROM receives the padded ROM slot in one piece
func (h *Handler) loadROM(conn net.Conn, req *Request) error {
	if err := h.reply(conn, req); err != nil || !req.Accepted {
		return err
	}
	assembler, err := h.newAssembler(req)
	if err != nil {
		return err
	}
	slot := make([]byte, constants.ROM_SLOT_SIZE)
	_, rerr := io.ReadFull(conn, slot)
	assembler.Add(slot)
	h.finish(req, assembler)
	return rerr
}

// loadChunked requests the image one chunk at a time: OK, then RD per remaining chunk, then FI
func (h *Handler) loadChunked(conn net.Conn, req *Request) error {
	if err := h.reply(conn, req); err != nil || !req.Accepted {
		return err
	}
	if req.ChunkSize == 0 {
		return fmt.Errorf("chunk size missing for '%s'", req.Opcode)
	}
	assembler, err := h.newAssembler(req)
	if err != nil {
		return err
	}
	defer h.finish(req, assembler)

	chunks := int((req.TotalSize + req.ChunkSize - 1) / req.ChunkSize)
	chunk := make([]byte, req.ChunkSize)
	for i := 0; i < chunks; i++ {
		if i > 0 {
			if _, err := conn.Write(networking.Response(opcode.READY)); err != nil {
				return err
			}
		}
		if _, err := io.ReadFull(conn, chunk); err != nil {
			return err
		}
		assembler.Add(chunk)
		req.Chunks++
	}

	_, err = conn.Write(networking.Response(opcode.FINISHED))
	return err
}

func (h *Handler) newAssembler(req *Request) (*worker.ImageAssembler, error) {
	var filename string
	if h.root != "" {
		h.stored++
		filename = filepath.Join(h.root, fmt.Sprintf("%s-%d.bin", req.Opcode, h.stored))
		if h.compress {
			filename += fileio.LZ4Suffix
		}
	}
	req.Path = filename

	assembler := new(worker.ImageAssembler)
	err := assembler.NewFile(new(fileio.BufferedFactory), filename, int(req.TotalSize), h.compress)
	return assembler, err
}

func (h *Handler) finish(req *Request, assembler *worker.ImageAssembler) {
	req.Image = assembler.Image()
	sum, err := assembler.Stop()
	if err != nil {
		h.log.Error("image not stored", zap.String("code", req.Opcode),
			zap.String("path", req.Path), zap.Error(err))
		req.Path = ""
		return
	}
	req.Checksum = hex.EncodeToString(sum)
	h.log.Info("image received", zap.String("code", req.Opcode),
		zap.Int("bytes", len(req.Image)), zap.String("crc32", req.Checksum))
}
