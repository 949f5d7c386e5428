// Package bridge exposes the call processor to a host over a WebSocket.
// One host is served at a time; its commands are processed in arrival
// order and unsolicited responses are pushed on the same connection.
package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"webcall/native/internal/protocol"
)

const (
	defaultPingInterval = 20 * time.Second
	defaultPongWait     = 45 * time.Second
	defaultReadLimit    = 1 << 20
	writeWait           = 5 * time.Second
)

// Processor handles one decoded command.
type Processor interface {
	Process(ctx context.Context, cmd protocol.Command) protocol.Response
}

// Options tunes the WebSocket keepalive. Zero values use defaults.
type Options struct {
	PingInterval time.Duration
	PongWait     time.Duration
	ReadLimit    int64
}

// Server serves the host connection.
type Server struct {
	proc     Processor
	logger   *zap.Logger
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration
	readLimit    int64

	// onDisconnect runs after the host connection goes away.
	onDisconnect func()

	mu   sync.Mutex
	host *hostConn
}

// New creates a Server. onDisconnect may be nil.
func New(proc Processor, opts Options, onDisconnect func(), logger *zap.Logger) *Server {
	s := &Server{
		proc:         proc,
		logger:       logger.Named("bridge"),
		pingInterval: opts.PingInterval,
		pongWait:     opts.PongWait,
		readLimit:    opts.ReadLimit,
		onDisconnect: onDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
	if s.pongWait <= 0 {
		s.pongWait = defaultPongWait
	}
	if s.pingInterval <= 0 {
		s.pingInterval = defaultPingInterval
	}
	if s.pingInterval >= s.pongWait {
		s.pingInterval = s.pongWait / 2
	}
	if s.readLimit <= 0 {
		s.readLimit = defaultReadLimit
	}
	return s
}

// hostConn is one connected host.
type hostConn struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func (h *hostConn) close() {
	h.once.Do(func() {
		close(h.closed)
		h.conn.Close()
	})
}

func (h *hostConn) send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Debug(">>>", zap.ByteString("message", data))
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// ServeHTTP upgrades the request and serves the host until it
// disconnects. A second concurrent host is refused.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.host != nil
	s.mu.Unlock()
	if busy {
		http.Error(w, "host already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h := &hostConn{conn: conn, logger: s.logger, closed: make(chan struct{})}
	s.mu.Lock()
	if s.host != nil {
		s.mu.Unlock()
		s.logger.Warn("refusing second host", zap.String("remote", r.RemoteAddr))
		conn.Close()
		return
	}
	s.host = h
	s.mu.Unlock()

	s.logger.Info("host connected", zap.String("remote", r.RemoteAddr))
	go s.pingLoop(h)
	s.readLoop(h)

	s.mu.Lock()
	s.host = nil
	s.mu.Unlock()
	s.logger.Info("host disconnected", zap.String("remote", r.RemoteAddr))
	if s.onDisconnect != nil {
		s.onDisconnect()
	}
}

// Notify pushes an unsolicited response to the connected host. Without a
// host the response is dropped.
func (s *Server) Notify(resp protocol.Response) {
	s.mu.Lock()
	h := s.host
	s.mu.Unlock()
	if h == nil {
		s.logger.Debug("no host, dropping event", zap.String("type", resp.ResponseType()))
		return
	}

	data, err := protocol.EncodeReply(nil, resp, nil)
	if err != nil {
		s.logger.Error("encode event", zap.Error(err))
		return
	}
	if err := h.send(data); err != nil {
		s.logger.Warn("write event", zap.Error(err))
	}
}

func (s *Server) readLoop(h *hostConn) {
	defer h.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.conn.SetReadLimit(s.readLimit)
	_ = h.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	h.conn.SetPongHandler(func(string) error {
		return h.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.closed:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("read error", zap.Error(err))
				}
			}
			return
		}
		s.logger.Debug("<<<", zap.ByteString("message", data))

		reply, err := s.handle(ctx, data)
		if err != nil {
			s.logger.Error("encode reply", zap.Error(err))
			continue
		}
		if err := h.send(reply); err != nil {
			s.logger.Warn("write reply", zap.Error(err))
			return
		}
	}
}

// handle decodes one host message, runs it and encodes the reply.
func (s *Server) handle(ctx context.Context, data []byte) ([]byte, error) {
	req, err := protocol.ParseRequest(data)
	if err != nil {
		s.logger.Warn("invalid request", zap.Error(err))
		return protocol.EncodeReply(nil, protocol.InvalidResponse{Type: "unknown"}, nil)
	}

	cmd, err := protocol.ParseCommand(req.Command)
	if err != nil {
		s.logger.Warn("invalid command", zap.Error(err))
		return protocol.EncodeReply(req.CorrID, protocol.InvalidResponse{Type: "unknown"}, req.Command)
	}

	resp := s.proc.Process(ctx, cmd)
	return protocol.EncodeReply(req.CorrID, resp, req.Command)
}

func (s *Server) pingLoop(h *hostConn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.closed:
			return
		case <-ticker.C:
			h.mu.Lock()
			err := h.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			h.mu.Unlock()
			if err != nil {
				select {
				case <-h.closed:
				default:
					s.logger.Warn("ping error", zap.Error(err))
					h.close()
				}
				return
			}
		}
	}
}
