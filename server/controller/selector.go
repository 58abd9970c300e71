package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"pico_command_center/constants"
	"pico_command_center/logging"
	"pico_command_center/networking"
)

// Options configure the emulated device
type Options struct {
	Listen    string        // TCP command address, e.g. "0.0.0.0:4242"
	Announce  string        // UDP handshake destination, e.g. "255.255.255.255:4243"
	Handshake string        // defaults to the device greeting
	Interval  time.Duration // handshake period
	Root      string        // folder for received images, empty keeps them in memory
	Reject    bool          // answer ER instead of OK
	Compress  bool          // store images as LZ4 frames
	Log       *zap.Logger
}

// Server emulates a PicoExpander: it announces itself over UDP and serves
// one command per TCP connection, one connection at a time
type Server struct {
	opts     Options
	listener net.Listener
	announce net.PacketConn
	handler  *Handler
	requests chan *Request
	log      *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New returns unstarted server
func New(opts Options) *Server {
	if opts.Handshake == "" {
		opts.Handshake = constants.HANDSHAKE_MESSAGE
	}
	if opts.Interval <= 0 {
		opts.Interval = constants.ANNOUNCE_INTERVAL
	}
	log := logging.OrNop(opts.Log)
	return &Server{
		opts: opts,
		handler: &Handler{
			root:     opts.Root,
			reject:   opts.Reject,
			compress: opts.Compress,
			log:      log,
		},
		requests: make(chan *Request, 16),
		log:      log,
	}
}

// Start binds listening and announcing sockets and serves in the background
func (s *Server) Start(ctx context.Context) error {
	lc := new(net.ListenConfig)
	l, err := lc.Listen(ctx, "tcp4", s.opts.Listen)
	if err != nil {
		return err
	}

	target, err := net.ResolveUDPAddr("udp4", s.opts.Announce)
	if err != nil {
		l.Close()
		return err
	}
	blc := net.ListenConfig{Control: networking.BroadcastControl}
	pc, err := blc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		l.Close()
		return err
	}

	s.listener = l
	s.announce = pc
	ctx, s.cancel = context.WithCancel(ctx)

	s.log.Info("listening", zap.Stringer("address", l.Addr()), zap.Stringer("announce", target))

	s.wg.Add(2)
	go s.announceLoop(ctx, target)
	go s.acceptLoop()
	return nil
}

// Addr returns TCP command address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Requests yields every handled command
func (s *Server) Requests() <-chan *Request {
	return s.requests
}

// Close stops announcing and serving
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.announce != nil {
		s.announce.Close()
	}
	s.wg.Wait()
	return err
}

// Serve blocks until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// announceLoop sends the handshake every interval until stopped
func (s *Server) announceLoop(ctx context.Context, target *net.UDPAddr) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.announce.WriteTo([]byte(s.opts.Handshake), target); err != nil {
			s.log.Debug("handshake not sent", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// acceptLoop handles connections sequentially
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		// Handle incoming connection.
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("failed to establish incoming connection", zap.Error(err))
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			// Set TCP_NODELAY to always immediately send.
			tcp.SetNoDelay(true)
		}

		s.log.Info("new connection", zap.Stringer("from", conn.RemoteAddr()))
		req, err := s.handler.handleRequest(conn)
		conn.Close()
		if err != nil {
			s.log.Warn("request failed", zap.Error(err))
		}
		if req != nil {
			select {
			case s.requests <- req:
			default:
				s.log.Debug("request log full, dropping record", zap.String("code", req.Opcode))
			}
		}
	}
}
