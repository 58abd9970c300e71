package comms

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pico_command_center/fileio"
	"pico_command_center/logging"
	"pico_command_center/networking"
)

// Job is a command with its validated payload
type Job struct {
	Command Command
	Payload *fileio.Payload
}

// NewJob loads and validates the image for cmd. Size errors surface here,
// before any socket is opened. compressed forces LZ4 decoding of the file.
func NewJob(cmd Command, filename string, compressed bool) (*Job, error) {
	var data []byte
	if cmd.NeedsFile {
		var err error
		data, err = fileio.LoadImage(filename, compressed)
		if err != nil {
			return nil, err
		}
	}
	payload, err := fileio.Prepare(cmd.Opcode, data)
	if err != nil {
		return nil, err
	}
	return &Job{Command: cmd, Payload: payload}, nil
}

// Options tell the engine where to find the device
type Options struct {
	ListenAddress    string
	UDPPort          int
	TCPPort          int
	Handshake        string
	DiscoveryTimeout time.Duration // zero waits forever
	DSCP             int
	Log              *zap.Logger
	Progress         io.Writer // operator progress lines
}

// Execute waits for the device handshake, then runs job over TCP to a terminal state
func Execute(ctx context.Context, opts Options, job *Job) error {
	log := logging.OrNop(opts.Log)
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	peer, err := discover(ctx, opts, log, progress)
	if err != nil {
		return err
	}
	fmt.Fprintln(progress, "Handshake received from SVI-3x8 PicoExpander, sending a command...")

	client := NewClient(log)
	address := net.JoinHostPort(peer.String(), strconv.Itoa(opts.TCPPort))
	if err := client.Connect(ctx, address, opts.DSCP); err != nil {
		return err
	}
	defer func() {
		client.Close()
		fmt.Fprintln(progress, "TCP connection closed")
	}()

	fmt.Fprintln(progress, "Connected.", job.Command.Starting)

	machine := NewMachine(job.Command, job.Payload, log)
	if err := client.Run(ctx, machine); err != nil {
		return err
	}
	fmt.Fprintln(progress, job.Command.Success)
	return nil
}

func discover(ctx context.Context, opts Options, log *zap.Logger, progress io.Writer) (net.IP, error) {
	if opts.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DiscoveryTimeout)
		defer cancel()
	}

	listener, err := networking.Listen(ctx, opts.ListenAddress, opts.UDPPort, opts.Handshake, log)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(progress, "Waiting for SVI-3x8 PicoExpander...")

	return listener.Wait(ctx)
}
