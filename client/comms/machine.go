package comms

import (
	"fmt"

	"go.uber.org/zap"

	"pico_command_center/fileio"
	"pico_command_center/logging"
	"pico_command_center/networking"
	"pico_command_center/networking/opcode"
)

// State of a transfer session
type State int

const (
	Requesting       State = iota // command frame not yet written
	AwaitingResponse              // single shot commands
	AwaitingOK
	AwaitingRD
	AwaitingFI
	Succeeded
	Failed
)

var stateNames = map[State]string{
	Requesting:       "sending_request",
	AwaitingResponse: "waiting_for_response",
	AwaitingOK:       "waiting_for_OK",
	AwaitingRD:       "waiting_for_RD",
	AwaitingFI:       "waiting_for_FI",
	Succeeded:        "finished",
	Failed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transition keys the table on current state and inbound command code
type transition struct {
	from State
	code string
}

// handler applies one transition and returns the bytes to send, if any
type handler func(m *Machine) ([]byte, error)

var chunkedTransitions = map[transition]handler{
	{AwaitingOK, opcode.OK}:       (*Machine).firstChunk,
	{AwaitingRD, opcode.READY}:    (*Machine).nextChunk,
	{AwaitingFI, opcode.FINISHED}: (*Machine).finish,
}

var singleShotTransitions = map[transition]handler{
	{AwaitingResponse, opcode.OK}:    (*Machine).accepted,
	{AwaitingResponse, opcode.ERROR}: (*Machine).refused,
}

// Machine is the per-command transfer state machine. It performs no I/O:
// the session feeds it inbound frames and writes out whatever it returns.
type Machine struct {
	cmd         Command
	payload     *fileio.Payload
	transitions map[transition]handler
	state       State
	sending     State // state the last outbound bytes were produced in
	offset      int
	chunks      int
	log         *zap.Logger
}

// NewMachine prepares state machine for command with already prepared payload
func NewMachine(cmd Command, payload *fileio.Payload, log *zap.Logger) *Machine {
	if payload == nil {
		payload = new(fileio.Payload)
	}
	m := &Machine{
		cmd:     cmd,
		payload: payload,
		sending: Requesting,
		log:     logging.OrNop(log).With(zap.String("command", cmd.Opcode)),
	}
	switch cmd.Kind {
	case Chunked:
		m.transitions = chunkedTransitions
		m.state = AwaitingOK
	case SingleShot:
		m.transitions = singleShotTransitions
		m.state = AwaitingResponse
	default:
		// Nothing is awaited once the request is out.
		m.state = Succeeded
	}
	return m
}

// Request returns the command frame opening the session
func (m *Machine) Request() ([]byte, error) {
	m.sending = Requesting
	return networking.EncodeFrame(m.cmd.Opcode, m.payload.TotalSize, m.payload.ChunkSize)
}

// State returns current state
func (m *Machine) State() State {
	return m.state
}

// Done reports whether a terminal state has been reached
func (m *Machine) Done() bool {
	return m.state == Succeeded || m.state == Failed
}

// ChunksSent returns how many payload chunks have been handed out
func (m *Machine) ChunksSent() int {
	return m.chunks
}

// Handle applies one inbound frame
func (m *Machine) Handle(frame *networking.Frame, validPadding bool) ([]byte, error) {
	if !validPadding {
		return nil, m.fail(frame.Code, networking.ErrMalformedFrame)
	}
	if m.Done() {
		return nil, m.fail(frame.Code, networking.ErrUnexpectedSequence)
	}

	apply, ok := m.transitions[transition{m.state, frame.Code}]
	if !ok {
		return nil, m.fail(frame.Code, networking.ErrUnexpectedSequence)
	}
	m.log.Debug("received", zap.String("code", frame.Code), zap.Stringer("state", m.state))
	m.sending = m.state
	return apply(m)
}

// WriteFailed fails the session after the bytes last returned could not be
// written. The error carries the state they were produced in.
func (m *Machine) WriteFailed(details string) error {
	err := &networking.SessionError{
		Operation: m.cmd.Name,
		State:     m.sending.String(),
		Err:       networking.ErrConnectionFault,
		Details:   details,
	}
	m.log.Error("session failed", zap.Error(err))
	m.moveTo(Failed)
	return err
}

// firstChunk answers the initial OK
func (m *Machine) firstChunk() ([]byte, error) {
	chunk := m.sendChunk()
	if m.cmd.ShortCircuit && m.offset >= int(m.payload.TotalSize) {
		m.moveTo(AwaitingFI)
	} else {
		m.moveTo(AwaitingRD)
	}
	return chunk, nil
}

// nextChunk answers RD
func (m *Machine) nextChunk() ([]byte, error) {
	chunk := m.sendChunk()
	if m.offset >= int(m.payload.TotalSize) {
		m.moveTo(AwaitingFI)
	}
	return chunk, nil
}

func (m *Machine) finish() ([]byte, error) {
	m.moveTo(Succeeded)
	return nil, nil
}

// accepted answers OK to a single shot command. ROM loads send the whole padded image.
func (m *Machine) accepted() ([]byte, error) {
	m.moveTo(Succeeded)
	if len(m.payload.Data) > 0 {
		m.log.Info("sending image", zap.Int("bytes", len(m.payload.Data)))
		return m.payload.Data, nil
	}
	return nil, nil
}

func (m *Machine) refused() ([]byte, error) {
	return nil, m.fail(opcode.ERROR, networking.ErrPeerError)
}

// sendChunk hands out the chunk at current offset and advances it
func (m *Machine) sendChunk() []byte {
	chunk := m.payload.Chunk(m.offset)
	m.log.Info("sent chunk", zap.Int("offset", m.offset), zap.Int("len", len(chunk)))
	m.offset += int(m.payload.ChunkSize)
	m.chunks++
	return chunk
}

func (m *Machine) moveTo(next State) {
	if next != m.state {
		m.log.Debug("transition", zap.Stringer("from", m.state), zap.Stringer("to", next))
	}
	m.state = next
}

func (m *Machine) fail(code string, kind error) error {
	err := &networking.SessionError{
		Operation: m.cmd.Name,
		State:     m.state.String(),
		Code:      code,
		Err:       kind,
	}
	m.log.Error("session failed", zap.Error(err))
	m.moveTo(Failed)
	return err
}
